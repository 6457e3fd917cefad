package users

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/logging"
	userrepo "github.com/usernamedt/multitext-server/internal/server/repositories/users"
	"github.com/usernamedt/multitext-server/internal/server/storage"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

func newService(t *testing.T) (*Service, storage.DocumentStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewService(userrepo.NewInMemoryRepository(), store, nopLogger{}), store
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "pw1"))

	assert.True(t, s.Authenticate(ctx, "alice", "pw1"))
	assert.False(t, s.Authenticate(ctx, "alice", "wrong"))
	assert.False(t, s.Authenticate(ctx, "nobody", "pw1"))

	err := s.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestService_AddOwnedFile(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "pw1"))
	require.NoError(t, s.AddOwnedFile(ctx, "alice", "notes.txt"))

	assert.True(t, s.IsOwner(ctx, "alice", "notes.txt"))
	assert.False(t, s.IsOwner(ctx, "alice", "other.txt"))

	owned, err := s.OwnedFiles(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, owned)

	// the empty artifact must exist on durable storage
	content, err := store.Read(ctx, "alice", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "", content)

	err = s.AddOwnedFile(ctx, "alice", "notes.txt")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	err = s.AddOwnedFile(ctx, "ghost", "x.txt")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestService_GrantShare(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "pw1"))
	require.NoError(t, s.Register(ctx, "bob", "pw2"))
	require.NoError(t, s.AddOwnedFile(ctx, "alice", "notes.txt"))

	assert.ErrorIs(t, s.GrantShare(ctx, "alice", "alice", "notes.txt"), common.ErrorForbidden)
	assert.ErrorIs(t, s.GrantShare(ctx, "alice", "ghost", "notes.txt"), common.ErrorNotFound)

	require.NoError(t, s.GrantShare(ctx, "alice", "bob", "notes.txt"))
	assert.True(t, s.HasShare(ctx, "alice", "bob", "notes.txt"))
	assert.False(t, s.HasShare(ctx, "alice", "bob", "other.txt"))

	// granting twice must not duplicate the entry
	require.NoError(t, s.GrantShare(ctx, "alice", "bob", "notes.txt"))
	shared, err := s.SharedFiles(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"alice": {"notes.txt"}}, shared)
}

func TestService_Reconcile(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	s := NewService(userrepo.NewInMemoryRepository(), store, nopLogger{})
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "pw1"))
	require.NoError(t, s.Register(ctx, "bob", "pw2"))
	require.NoError(t, s.AddOwnedFile(ctx, "alice", "keep.txt"))
	require.NoError(t, s.AddOwnedFile(ctx, "alice", "gone.txt"))
	require.NoError(t, s.GrantShare(ctx, "alice", "bob", "keep.txt"))
	require.NoError(t, s.GrantShare(ctx, "alice", "bob", "gone.txt"))

	// simulate out-of-band changes: one file deleted, one appeared
	require.NoError(t, os.Remove(filepath.Join(dir, "alice", "gone.txt")))
	require.NoError(t, store.Write(ctx, "alice", "found.txt", "x"))

	require.NoError(t, s.Reconcile(ctx))

	owned, err := s.OwnedFiles(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keep.txt", "found.txt"}, owned)

	shared, err := s.SharedFiles(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"alice": {"keep.txt"}}, shared)
}
