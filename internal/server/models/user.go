// Package models holds the persisted server-side data structures.
package models

// User is one account record in the user directory.
//
// Files holds the filenames the user owns. SharedFiles maps an owner's
// username to the filenames that owner has shared with this user.
type User struct {
	Name        string              `json:"name"`
	PassHash    string              `json:"pass_hash"`
	Files       []string            `json:"files"`
	SharedFiles map[string][]string `json:"shared_files"`
}

// Clone returns a deep copy, so repository callers can mutate the result
// without aliasing stored state.
func (u *User) Clone() *User {
	c := &User{
		Name:        u.Name,
		PassHash:    u.PassHash,
		Files:       append([]string(nil), u.Files...),
		SharedFiles: make(map[string][]string, len(u.SharedFiles)),
	}
	for owner, files := range u.SharedFiles {
		c.SharedFiles[owner] = append([]string(nil), files...)
	}
	return c
}
