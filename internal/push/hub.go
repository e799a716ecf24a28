// Package push serves the websocket endpoint dashboards subscribe to and
// fans ticket event frames out to every connected client.
package push

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/developer-yasir/support-panel/internal/auth"
	"github.com/developer-yasir/support-panel/internal/observability"
)

const (
	sendBuffer   = 32
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	maxInbound   = 4096
)

// ErrHubClosed is returned by Broadcast after Close.
var ErrHubClosed = errors.New("push hub closed")

// Authenticator resolves the token a client presents.
type Authenticator interface {
	Authenticate(token string) (*auth.Principal, error)
}

// Options configures a Hub.
type Options struct {
	Auth         Authenticator
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Client is one connected dashboard.
type Client struct {
	Principal *auth.Principal
	Conn      *websocket.Conn
	Send      chan []byte

	closeOnce sync.Once
}

// Hub tracks connected clients. It implements http.Handler.
type Hub struct {
	upgrader     websocket.Upgrader
	auth         Authenticator
	logger       *zap.Logger
	metrics      *observability.Metrics
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		auth:         opts.Auth,
		logger:       opts.Logger.Named("push"),
		metrics:      opts.Metrics,
		writeTimeout: opts.WriteTimeout,
		clients:      make(map[*Client]struct{}),
	}
}

// ServeHTTP authenticates the request, upgrades it and registers the client.
// The token comes from the Authorization header or the token query parameter,
// since browsers cannot set headers on websocket requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	principal, err := h.auth.Authenticate(token)
	if err != nil {
		h.logger.Debug("push client rejected", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Principal: principal, Conn: conn, Send: make(chan []byte, sendBuffer)}
	if !h.register(client) {
		_ = conn.Close()
		return
	}
	h.metrics.Inc(observability.CounterPushConnections)
	h.logger.Info("push client connected",
		zap.String("subject_id", principal.SubjectID),
		zap.String("subject_type", string(principal.SubjectType)),
		zap.String("remote", r.RemoteAddr))

	go h.writePump(client)
	go h.readPump(client)
}

// Broadcast queues data for every client and returns how many accepted it.
// Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(data []byte) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrHubClosed
	}
	var delivered int
	var slow []*Client
	for c := range h.clients {
		select {
		case c.Send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow push client", zap.String("subject_id", c.Principal.SubjectID))
		h.metrics.Inc(observability.CounterPushSlowDropped)
		h.unregister(c)
	}
	h.metrics.Inc(observability.CounterPushBroadcasts)
	h.metrics.Add(observability.CounterPushDelivered, int64(delivered))
	return delivered, nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client, refuses new ones and waits for the client
// goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
	h.wg.Wait()
}

// register adds c and accounts for its two pumps.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	return true
}

// unregister removes c and closes its send queue; the write pump then sends
// a close frame and closes the connection.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.closeOnce.Do(func() { close(c.Send) })
	}
}

func (h *Hub) writePump(c *Client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("push write failed", zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump drains inbound frames so control frames are processed and a
// closed peer is noticed. Dashboards have nothing to say to the server.
func (h *Hub) readPump(c *Client) {
	defer h.wg.Done()
	defer h.unregister(c)

	c.Conn.SetReadLimit(maxInbound)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("push client read error", zap.Error(err))
			}
			h.logger.Info("push client disconnected", zap.String("subject_id", c.Principal.SubjectID))
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
