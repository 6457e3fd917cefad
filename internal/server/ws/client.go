package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536

	// Outbound queue capacity per connection.
	sendQueueSize = 256
)

// Client is one WebSocket connection. Its Send method satisfies
// sessions.Conn so the broadcast engine can relay patches to it.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	router    *Router
	registry  *sessions.Registry
	recorder  metrics.Recorder
	logger    logging.Logger
	sessionID string

	// touched only by the read pump goroutine
	authenticated bool
}

func NewClient(conn *websocket.Conn, router *Router, registry *sessions.Registry, recorder metrics.Recorder, logger logging.Logger) *Client {
	c := &Client{
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		router:   router,
		registry: registry,
		recorder: recorder,
	}
	c.sessionID = sessions.NewSessionID()
	c.logger = logger.With("conn_id", c.sessionID)
	recorder.ConnectionOpened()
	return c
}

func (c *Client) SessionID() string   { return c.sessionID }
func (c *Client) Authenticated() bool { return c.authenticated }
func (c *Client) SetAuthenticated()   { c.authenticated = true }

// Send queues data for delivery without blocking. A full queue means the
// client is too slow; the message is dropped.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the WebSocket connection into the router.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.registry.Unregister(c.sessionID)
		c.recorder.ConnectionClosed()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error(ctx, "websocket read failed", "error", err)
			} else {
				c.logger.Info(ctx, "client gone away")
			}
			return
		}
		c.router.Handle(ctx, c, message)
	}
}

// WritePump pumps queued messages to the WebSocket connection and keeps the
// connection alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error(ctx, "websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
