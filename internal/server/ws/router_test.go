package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/access"
	"github.com/usernamedt/multitext-server/internal/server/broadcast"
	"github.com/usernamedt/multitext-server/internal/server/files"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/models"
	userrepo "github.com/usernamedt/multitext-server/internal/server/repositories/users"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
	"github.com/usernamedt/multitext-server/internal/server/storage"
	"github.com/usernamedt/multitext-server/internal/server/users"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// fakeClient stands in for a live WebSocket connection.
type fakeClient struct {
	sessionID     string
	authenticated bool
	sent          []map[string]any
}

func (c *fakeClient) SessionID() string   { return c.sessionID }
func (c *fakeClient) Authenticated() bool { return c.authenticated }
func (c *fakeClient) SetAuthenticated()   { c.authenticated = true }

func (c *fakeClient) Send(data []byte) bool {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		panic(err)
	}
	c.sent = append(c.sent, msg)
	return true
}

func (c *fakeClient) last() map[string]any {
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

// faultyRepo lets a test break the directory backend mid-scenario.
type faultyRepo struct {
	userrepo.Repository
	fail bool
}

func (r *faultyRepo) Get(ctx context.Context, username string) (*models.User, error) {
	if r.fail {
		return nil, common.ErrorPersistence
	}
	return r.Repository.Get(ctx, username)
}

type fixture struct {
	router   *Router
	registry *sessions.Registry
	store    storage.DocumentStore
	files    *files.Service
	repo     *faultyRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	repo := &faultyRepo{Repository: userrepo.NewInMemoryRepository()}
	userSvc := users.NewService(repo, store, nopLogger{})
	fileSvc := files.NewService(store, files.NewHistoryStore(), nopLogger{})
	registry := sessions.NewRegistry()
	engine := broadcast.NewEngine(fileSvc.Histories(), registry, metrics.Nop{}, nopLogger{})
	authority := access.NewAuthority(userSvc)

	router := NewRouter(userSvc, fileSvc, engine, authority, registry, metrics.Nop{},
		nopLogger{}, []byte("test-secret"), time.Hour)
	return &fixture{router: router, registry: registry, store: store, files: fileSvc, repo: repo}
}

func (f *fixture) connect() *fakeClient {
	return &fakeClient{sessionID: sessions.NewSessionID()}
}

func (f *fixture) send(t *testing.T, c *fakeClient, msg map[string]any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	f.router.Handle(context.Background(), c, raw)
}

func creds(extra map[string]any, username, password string) map[string]any {
	msg := map[string]any{"username": username, "password": password}
	for k, v := range extra {
		msg[k] = v
	}
	return msg
}

func register(t *testing.T, f *fixture, c *fakeClient, username, password string) {
	t.Helper()
	f.send(t, c, creds(map[string]any{"type": "user_register"}, username, password))
	require.Equal(t, true, c.last()["success"], "registration must succeed")
}

func TestRouter_RegisterIssuesToken(t *testing.T) {
	f := newFixture(t)
	c := f.connect()

	register(t, f, c, "alice", "pw")

	resp := c.last()
	assert.Equal(t, "auth_response", resp["type"])
	assert.Equal(t, "Auth success.", resp["content"])
	assert.NotEmpty(t, resp["token"])
	assert.True(t, c.authenticated)
}

func TestRouter_DuplicateRegistrationFails(t *testing.T) {
	f := newFixture(t)
	c1 := f.connect()
	register(t, f, c1, "alice", "pw")

	c2 := f.connect()
	f.send(t, c2, creds(map[string]any{"type": "user_register"}, "alice", "other"))
	resp := c2.last()
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Auth failure", resp["content"])
	assert.False(t, c2.authenticated)
}

func TestRouter_LoginWithWrongPassword(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	register(t, f, c, "alice", "pw")

	c2 := f.connect()
	f.send(t, c2, creds(map[string]any{"type": "user_login"}, "alice", "wrong"))
	assert.Equal(t, false, c2.last()["success"])
	assert.False(t, c2.authenticated)
}

func TestRouter_RejectsMessagesBeforeLogin(t *testing.T) {
	f := newFixture(t)
	c := f.connect()

	f.send(t, c, creds(map[string]any{"type": "all_files_request"}, "alice", "pw"))

	resp := c.last()
	require.NotNil(t, resp)
	assert.Equal(t, "auth_response", resp["type"])
	assert.Equal(t, false, resp["success"])
}

func TestRouter_UnknownTypeIsDropped(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	f.send(t, c, map[string]any{"type": "bogus_request"})
	assert.Empty(t, c.sent)
}

func TestRouter_EditLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.connect()
	register(t, f, c, "alice", "pw")

	// create
	f.send(t, c, creds(map[string]any{"type": "create_file_request", "filename": "doc.txt"}, "alice", "pw"))
	resp := c.last()
	require.Equal(t, true, resp["success"])
	assert.Equal(t, "Successfully created doc.txt", resp["content"])

	// open
	f.send(t, c, creds(map[string]any{"type": "file_request", "filename": "doc.txt"}, "alice", "pw"))
	resp = c.last()
	require.Equal(t, true, resp["success"])
	fileID, ok := resp["file_id"].(string)
	require.True(t, ok)
	assert.Equal(t, []any{}, resp["content"], "fresh file has an empty history")

	// patch comes back to the sender as delivery confirmation
	before := len(c.sent)
	f.send(t, c, creds(map[string]any{
		"type": "patch", "filename": "doc.txt", "file_id": fileID, "content": "ins(0,'A')",
	}, "alice", "pw"))
	require.Len(t, c.sent, before+1)
	assert.Equal(t, "patch", c.last()["type"])
	assert.Equal(t, "ins(0,'A')", c.last()["content"])

	// save flattens the history into the store
	f.send(t, c, creds(map[string]any{"type": "save_file_request", "filename": "doc.txt"}, "alice", "pw"))
	require.Equal(t, true, c.last()["success"])

	content, err := f.store.Read(ctx, "alice", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", content)
}

func TestRouter_PatchBroadcastToPeers(t *testing.T) {
	f := newFixture(t)
	alice := f.connect()
	register(t, f, alice, "alice", "pw")
	f.send(t, alice, creds(map[string]any{"type": "create_file_request", "filename": "doc.txt"}, "alice", "pw"))
	f.send(t, alice, creds(map[string]any{"type": "file_share_request", "filename": "doc.txt", "share_user": "bob"}, "alice", "pw"))
	require.Equal(t, false, alice.last()["success"], "cannot share with unknown user")

	bob := f.connect()
	register(t, f, bob, "bob", "pw2")
	f.send(t, alice, creds(map[string]any{"type": "file_share_request", "filename": "doc.txt", "share_user": "bob"}, "alice", "pw"))
	require.Equal(t, true, alice.last()["success"])

	// both open the shared document
	f.send(t, alice, creds(map[string]any{"type": "file_request", "filename": "doc.txt"}, "alice", "pw"))
	f.send(t, bob, creds(map[string]any{"type": "file_request", "filename": "doc.txt", "owner": "alice"}, "bob", "pw2"))
	require.Equal(t, true, bob.last()["success"])
	fileID := bob.last()["file_id"].(string)

	before := len(bob.sent)
	f.send(t, alice, creds(map[string]any{
		"type": "patch", "filename": "doc.txt", "file_id": fileID, "content": "ins(0,'A')",
	}, "alice", "pw"))
	require.Len(t, bob.sent, before+1)
	assert.Equal(t, "ins(0,'A')", bob.last()["content"])
}

func TestRouter_DeniesForeignFileWithoutShare(t *testing.T) {
	f := newFixture(t)
	alice := f.connect()
	register(t, f, alice, "alice", "pw")
	f.send(t, alice, creds(map[string]any{"type": "create_file_request", "filename": "doc.txt"}, "alice", "pw"))

	bob := f.connect()
	register(t, f, bob, "bob", "pw2")
	f.send(t, bob, creds(map[string]any{"type": "file_request", "filename": "doc.txt", "owner": "alice"}, "bob", "pw2"))

	resp := bob.last()
	assert.Equal(t, "auth_response", resp["type"])
	assert.Equal(t, false, resp["success"])
}

func TestRouter_AllFilesListing(t *testing.T) {
	f := newFixture(t)
	alice := f.connect()
	register(t, f, alice, "alice", "pw")
	for _, name := range []string{"a.txt", "b.txt"} {
		f.send(t, alice, creds(map[string]any{"type": "create_file_request", "filename": name}, "alice", "pw"))
	}

	bob := f.connect()
	register(t, f, bob, "bob", "pw2")
	f.send(t, alice, creds(map[string]any{"type": "file_share_request", "filename": "a.txt", "share_user": "bob"}, "alice", "pw"))

	f.send(t, bob, creds(map[string]any{"type": "all_files_request"}, "bob", "pw2"))
	resp := bob.last()
	require.Equal(t, "all_files_response", resp["type"])
	content := resp["content"].(map[string]any)
	assert.Empty(t, content["files"])
	shared := content["shared_files"].(map[string]any)
	assert.Equal(t, []any{"a.txt"}, shared["alice"])
}

func TestRouter_OpenMissingFileFails(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	register(t, f, c, "alice", "pw")

	f.send(t, c, creds(map[string]any{"type": "file_request", "filename": "ghost.txt"}, "alice", "pw"))

	resp := c.last()
	assert.Equal(t, "auth_response", resp["type"])
	assert.Equal(t, false, resp["success"])
}

func TestRouter_SaveAfterEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.connect()
	register(t, f, c, "alice", "pw")
	f.send(t, c, creds(map[string]any{"type": "create_file_request", "filename": "doc.txt"}, "alice", "pw"))
	f.send(t, c, creds(map[string]any{"type": "file_request", "filename": "doc.txt"}, "alice", "pw"))
	fileID := c.last()["file_id"].(string)

	for i, ch := range "hey" {
		f.send(t, c, creds(map[string]any{
			"type": "patch", "filename": "doc.txt", "file_id": fileID,
			"content": fmt.Sprintf("ins(%d,'%c')", i, ch),
		}, "alice", "pw"))
	}
	f.send(t, c, creds(map[string]any{
		"type": "patch", "filename": "doc.txt", "file_id": fileID, "content": "del(2)",
	}, "alice", "pw"))

	f.send(t, c, creds(map[string]any{"type": "save_file_request", "filename": "doc.txt"}, "alice", "pw"))
	require.Equal(t, true, c.last()["success"])

	content, err := f.store.Read(ctx, "alice", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "he", content)
}

func TestRouter_SaveWithoutOpenFails(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	register(t, f, c, "alice", "pw")
	f.send(t, c, creds(map[string]any{"type": "create_file_request", "filename": "doc.txt"}, "alice", "pw"))
	require.Equal(t, true, c.last()["success"])

	// the file was never opened, so there is no history to flatten
	f.send(t, c, creds(map[string]any{"type": "save_file_request", "filename": "doc.txt"}, "alice", "pw"))

	resp := c.last()
	assert.Equal(t, "save_file_response", resp["type"])
	assert.Equal(t, false, resp["success"])
}

func TestRouter_RegistersSessionOnAuthOnly(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	assert.Equal(t, 0, f.registry.Len(), "connecting alone must not register a session")

	register(t, f, c, "alice", "pw")
	assert.Equal(t, 1, f.registry.Len())

	c2 := f.connect()
	f.send(t, c2, creds(map[string]any{"type": "user_login"}, "alice", "wrong"))
	assert.Equal(t, 1, f.registry.Len(), "failed login must not register a session")

	c3 := f.connect()
	f.send(t, c3, creds(map[string]any{"type": "user_login"}, "alice", "pw"))
	assert.Equal(t, 2, f.registry.Len())
}

func TestRouter_AllFilesBackendFailure(t *testing.T) {
	f := newFixture(t)
	c := f.connect()
	register(t, f, c, "alice", "pw")

	f.send(t, c, creds(map[string]any{"type": "all_files_request"}, "alice", "pw"))
	require.Equal(t, true, c.last()["success"])

	f.repo.fail = true
	f.send(t, c, creds(map[string]any{"type": "all_files_request"}, "alice", "pw"))

	resp := c.last()
	assert.Equal(t, "all_files_response", resp["type"])
	assert.Equal(t, false, resp["success"])
	assert.NotContains(t, resp, "content")
}
