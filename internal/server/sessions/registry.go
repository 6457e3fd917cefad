// Package sessions tracks live connections and their file subscriptions.
package sessions

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is an outbound message sink for one connected client. Send must not
// block; it reports whether the payload was accepted.
type Conn interface {
	Send(data []byte) bool
}

type session struct {
	conn   Conn
	fileID string
}

// Registry maps session IDs to connections and the file each session
// currently edits. A connection enters the registry once its login handshake
// succeeds; sessions start unassigned and switch files as the client opens
// documents.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// NewSessionID mints an identifier for a freshly accepted connection.
func NewSessionID() string {
	return uuid.NewString()
}

// Register adds a connection under the given session ID.
func (r *Registry) Register(sessionID string, conn Conn) {
	r.mu.Lock()
	r.sessions[sessionID] = &session{conn: conn}
	r.mu.Unlock()
}

// Assign binds the session to fileID, replacing any previous binding.
// Unknown session IDs are ignored.
func (r *Registry) Assign(sessionID, fileID string) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		s.fileID = fileID
	}
	r.mu.Unlock()
}

// Unregister removes the session. Safe to call twice.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// SessionsFor returns the connections of every session bound to fileID,
// including the one that originated a change. Echoing back to the sender
// doubles as delivery confirmation.
func (r *Registry) SessionsFor(fileID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []Conn
	for _, s := range r.sessions {
		if s.fileID == fileID && s.fileID != "" {
			conns = append(conns, s.conn)
		}
	}
	return conns
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
