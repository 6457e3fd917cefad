package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/access"
	"github.com/usernamedt/multitext-server/internal/server/auth"
	"github.com/usernamedt/multitext-server/internal/server/broadcast"
	"github.com/usernamedt/multitext-server/internal/server/files"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/protocol"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
	"github.com/usernamedt/multitext-server/internal/server/users"
)

// ClientConn is the router's view of one connection.
type ClientConn interface {
	SessionID() string
	Authenticated() bool
	SetAuthenticated()
	Send(data []byte) bool
}

// Router decodes inbound messages, enforces the access policy and dispatches
// to the matching handler.
type Router struct {
	users     *users.Service
	files     *files.Service
	engine    *broadcast.Engine
	authority *access.Authority
	registry  *sessions.Registry
	recorder  metrics.Recorder
	logger    logging.Logger

	secretKey     []byte
	tokenValidity time.Duration
}

func NewRouter(
	userSvc *users.Service,
	fileSvc *files.Service,
	engine *broadcast.Engine,
	authority *access.Authority,
	registry *sessions.Registry,
	recorder metrics.Recorder,
	logger logging.Logger,
	secretKey []byte,
	tokenValidity time.Duration,
) *Router {
	return &Router{
		users:         userSvc,
		files:         fileSvc,
		engine:        engine,
		authority:     authority,
		registry:      registry,
		recorder:      recorder,
		logger:        logger.With("module", "router"),
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
	}
}

// Handle processes one raw inbound message. Unknown message types are logged
// and dropped without a reply.
func (r *Router) Handle(ctx context.Context, conn ClientConn, raw []byte) {
	req, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Warn(ctx, "unsupported event", "conn_id", conn.SessionID(), "error", err)
		return
	}

	switch msg := req.(type) {
	case *protocol.RegisterRequest:
		r.handleRegister(ctx, conn, msg)
	case *protocol.LoginRequest:
		r.handleLogin(ctx, conn, msg)
	default:
		r.handleAuthorized(ctx, conn, req, raw)
	}
}

// handleAuthorized covers every message type past the login handshake. A
// connection that has not completed the handshake, or a message that fails
// the access policy, gets the generic auth failure reply.
func (r *Router) handleAuthorized(ctx context.Context, conn ClientConn, req protocol.Request, raw []byte) {
	if !conn.Authenticated() || !r.authorize(ctx, req) {
		r.recorder.RecordAuthFailure()
		r.reply(conn, protocol.NewAuthResponse(false, "Auth failure", ""))
		return
	}

	switch msg := req.(type) {
	case *protocol.AllFilesRequest:
		r.handleAllFiles(ctx, conn, msg)
	case *protocol.FileRequest:
		r.handleFileRequest(ctx, conn, msg)
	case *protocol.CreateFileRequest:
		r.handleCreateFile(ctx, conn, msg)
	case *protocol.SaveFileRequest:
		r.handleSaveFile(ctx, conn, msg)
	case *protocol.FileShareRequest:
		r.handleFileShare(ctx, conn, msg)
	case *protocol.PatchRequest:
		r.engine.Submit(ctx, msg.FileID, msg.Content, raw)
	}
}

// authorize maps a request onto the access policy inputs.
func (r *Router) authorize(ctx context.Context, req protocol.Request) bool {
	var creds protocol.Credentials
	var filename, owner string

	switch msg := req.(type) {
	case *protocol.AllFilesRequest:
		creds = msg.Credentials
	case *protocol.FileRequest:
		creds, filename, owner = msg.Credentials, msg.Filename, msg.Owner
	case *protocol.CreateFileRequest:
		creds, filename = msg.Credentials, msg.Filename
	case *protocol.SaveFileRequest:
		creds, filename, owner = msg.Credentials, msg.Filename, msg.Owner
	case *protocol.FileShareRequest:
		creds, filename, owner = msg.Credentials, msg.Filename, msg.Owner
	case *protocol.PatchRequest:
		creds, filename, owner = msg.Credentials, msg.Filename, msg.Owner
	default:
		return false
	}

	return r.authority.Authorize(ctx, creds.Username, creds.Password, filename, owner, req.Kind())
}

func (r *Router) handleRegister(ctx context.Context, conn ClientConn, msg *protocol.RegisterRequest) {
	if err := r.users.Register(ctx, msg.Username, msg.Password); err != nil {
		r.logger.Info(ctx, "registration rejected", "username", msg.Username, "error", err)
		r.recorder.RecordAuthFailure()
		r.reply(conn, protocol.NewAuthResponse(false, "Auth failure", ""))
		return
	}
	r.completeHandshake(ctx, conn, msg.Username)
}

func (r *Router) handleLogin(ctx context.Context, conn ClientConn, msg *protocol.LoginRequest) {
	if !r.users.Authenticate(ctx, msg.Username, msg.Password) {
		r.logger.Info(ctx, "login rejected", "username", msg.Username)
		r.recorder.RecordAuthFailure()
		r.reply(conn, protocol.NewAuthResponse(false, "Auth failure", ""))
		return
	}
	r.completeHandshake(ctx, conn, msg.Username)
}

func (r *Router) completeHandshake(ctx context.Context, conn ClientConn, username string) {
	r.authority.Invalidate()

	token, err := auth.GenerateToken(username, r.secretKey, r.tokenValidity)
	if err != nil {
		r.logger.Error(ctx, "token generation failed", "username", username, "error", err)
		r.reply(conn, protocol.NewAuthResponse(false, "Auth failure", ""))
		return
	}

	conn.SetAuthenticated()
	r.registry.Register(conn.SessionID(), conn)
	r.logger.Info(ctx, "client authenticated", "username", username, "conn_id", conn.SessionID())
	r.reply(conn, protocol.NewAuthResponse(true, "Auth success.", token))
}

func (r *Router) handleAllFiles(ctx context.Context, conn ClientConn, msg *protocol.AllFilesRequest) {
	owned, err := r.users.OwnedFiles(ctx, msg.Username)
	if err != nil {
		r.logger.Error(ctx, "listing files failed", "username", msg.Username, "error", err)
		r.reply(conn, protocol.NewAllFilesFailure())
		return
	}
	shared, err := r.users.SharedFiles(ctx, msg.Username)
	if err != nil {
		r.logger.Error(ctx, "listing shared files failed", "username", msg.Username, "error", err)
		r.reply(conn, protocol.NewAllFilesFailure())
		return
	}
	r.reply(conn, protocol.NewAllFilesResponse(protocol.FileListing{Files: owned, SharedFiles: shared}))
}

func (r *Router) handleFileRequest(ctx context.Context, conn ClientConn, msg *protocol.FileRequest) {
	owner := effectiveOwner(msg.Username, msg.Owner)
	fileID, history, err := r.files.Load(ctx, owner, msg.Filename)
	if err != nil {
		r.logger.Error(ctx, "file open failed", "owner", owner, "filename", msg.Filename, "error", err)
		r.reply(conn, protocol.NewFileRequestFailure())
		return
	}
	r.registry.Assign(conn.SessionID(), fileID)
	r.logger.Info(ctx, "sending known patch history", "username", msg.Username, "filename", msg.Filename)
	r.reply(conn, protocol.NewFileRequestResponse(fileID, history))
}

func (r *Router) handleCreateFile(ctx context.Context, conn ClientConn, msg *protocol.CreateFileRequest) {
	// file listings depend on directory state, drop memoized verdicts either way
	defer r.authority.Invalidate()

	if err := r.users.AddOwnedFile(ctx, msg.Username, msg.Filename); err != nil {
		r.logger.Error(ctx, "file creation failed", "username", msg.Username, "filename", msg.Filename, "error", err)
		r.reply(conn, protocol.NewCreateFileResponse(false, fmt.Sprintf("Failed to create %s", msg.Filename)))
		return
	}
	r.reply(conn, protocol.NewCreateFileResponse(true, fmt.Sprintf("Successfully created %s", msg.Filename)))
}

func (r *Router) handleSaveFile(ctx context.Context, conn ClientConn, msg *protocol.SaveFileRequest) {
	owner := effectiveOwner(msg.Username, msg.Owner)
	if err := r.files.Save(ctx, owner, msg.Filename); err != nil {
		r.logger.Error(ctx, "file save failed", "owner", owner, "filename", msg.Filename, "error", err)
		r.reply(conn, protocol.NewSaveFileResponse(false))
		return
	}
	r.reply(conn, protocol.NewSaveFileResponse(true))
}

func (r *Router) handleFileShare(ctx context.Context, conn ClientConn, msg *protocol.FileShareRequest) {
	owner := effectiveOwner(msg.Username, msg.Owner)
	if err := r.users.GrantShare(ctx, owner, msg.ShareUser, msg.Filename); err != nil {
		r.logger.Info(ctx, "share rejected", "owner", owner, "grantee", msg.ShareUser, "filename", msg.Filename, "error", err)
		r.reply(conn, protocol.NewFileShareResponse(false))
		return
	}
	r.authority.Invalidate()
	r.reply(conn, protocol.NewFileShareResponse(true))
}

func (r *Router) reply(conn ClientConn, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		return
	}
	conn.Send(data)
}

// effectiveOwner resolves the owner a file operation targets: the explicit
// owner of a shared file, or the requester themselves.
func effectiveOwner(username, owner string) string {
	if owner != "" {
		return owner
	}
	return username
}
