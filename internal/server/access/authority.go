// Package access implements the authorization policy gating every inbound
// request, with memoized verdicts.
package access

import (
	"context"
	"sync"

	"github.com/usernamedt/multitext-server/internal/server/protocol"
)

// Directory is the subset of the user directory the policy consults.
type Directory interface {
	Authenticate(ctx context.Context, username, password string) bool
	HasShare(ctx context.Context, owner, grantee, filename string) bool
	IsOwner(ctx context.Context, username, filename string) bool
}

// verdictKey is the full input tuple of one policy evaluation.
type verdictKey struct {
	username string
	password string
	filename string
	owner    string
	kind     protocol.Kind
}

// Authority evaluates and memoizes authorization verdicts. Verdicts depend on
// directory state, so the cache must be cleared through Invalidate whenever a
// registration, file creation or share grant succeeds.
type Authority struct {
	dir Directory

	mu    sync.Mutex
	cache map[verdictKey]bool
}

func NewAuthority(dir Directory) *Authority {
	return &Authority{
		dir:   dir,
		cache: make(map[verdictKey]bool),
	}
}

// Authenticate reports whether the credentials identify a known account.
func (a *Authority) Authenticate(ctx context.Context, username, password string) bool {
	return a.dir.Authenticate(ctx, username, password)
}

// Authorize evaluates the access policy for one request. The checks run in a
// fixed order and short-circuit on the first match:
//
//  1. reject empty credentials
//  2. reject unknown credentials
//  3. accept when an explicit owner granted filename to username
//  4. accept creation and listing requests (they do not target an existing
//     file by identity)
//  5. accept when username owns filename
//  6. reject
//
// Owner is the raw owner field of the request, empty when absent.
func (a *Authority) Authorize(ctx context.Context, username, password, filename, owner string, kind protocol.Kind) bool {
	key := verdictKey{username: username, password: password, filename: filename, owner: owner, kind: kind}

	a.mu.Lock()
	verdict, ok := a.cache[key]
	a.mu.Unlock()
	if ok {
		return verdict
	}

	verdict = a.evaluate(ctx, key)

	a.mu.Lock()
	a.cache[key] = verdict
	a.mu.Unlock()
	return verdict
}

func (a *Authority) evaluate(ctx context.Context, key verdictKey) bool {
	if key.username == "" || key.password == "" {
		return false
	}
	if !a.dir.Authenticate(ctx, key.username, key.password) {
		return false
	}
	if key.owner != "" && a.dir.HasShare(ctx, key.owner, key.username, key.filename) {
		return true
	}
	if key.kind == protocol.KindCreateFile || key.kind == protocol.KindAllFiles {
		return true
	}
	return a.dir.IsOwner(ctx, key.username, key.filename)
}

// Invalidate clears every memoized verdict. A wholesale clear keeps the
// happens-before reasoning simple: the caller invalidates under the same
// mutation path that changed the underlying facts.
func (a *Authority) Invalidate() {
	a.mu.Lock()
	a.cache = make(map[verdictKey]bool)
	a.mu.Unlock()
}
