// Package ws provides the WebSocket transport: it upgrades HTTP requests,
// runs the per-connection read and write pumps and hands decoded messages to
// the router.
package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
)

// Server accepts WebSocket connections and exposes the metrics endpoint.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	router     *Router
	registry   *sessions.Registry
	recorder   metrics.Recorder
	logger     logging.Logger
}

func NewServer(
	addr string,
	router *Router,
	registry *sessions.Registry,
	recorder metrics.Recorder,
	promRegistry *prometheus.Registry,
	logger logging.Logger,
) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// editor clients connect from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		router:   router,
		registry: registry,
		recorder: recorder,
		logger:   logger.With("module", "ws"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	mux.Handle("/metrics", metrics.Handler(promRegistry))

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving connections until Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info(ctx, "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s.router, s.registry, s.recorder, s.logger)
	s.logger.Info(r.Context(), "new client", "conn_id", client.SessionID(), "existing", s.registry.Len())

	ctx := context.Background()
	go client.WritePump(ctx)
	go client.ReadPump(ctx)
}
