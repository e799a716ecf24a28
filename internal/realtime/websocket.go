package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultReadLimit    = 1 << 20
	defaultWriteTimeout = 10 * time.Second
)

// WebsocketDialer dials push channels with gorilla/websocket.
type WebsocketDialer struct {
	Dialer       *websocket.Dialer
	Header       http.Header
	ReadLimit    int64
	WriteTimeout time.Duration
}

// NewWebsocketDialer returns a dialer sending header on every handshake.
func NewWebsocketDialer(header http.Header) *WebsocketDialer {
	return &WebsocketDialer{
		Dialer:       websocket.DefaultDialer,
		Header:       header,
		ReadLimit:    defaultReadLimit,
		WriteTimeout: defaultWriteTimeout,
	}
}

// BearerHeader builds the handshake header carrying an access token.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Dial opens a websocket connection to endpoint.
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported push scheme %q", u.Scheme)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// EndpointFromAPI derives the push endpoint from the REST API base URL:
// http becomes ws, https becomes wss, and path replaces the base path.
func EndpointFromAPI(apiBase, path string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/ws"
	}
	u.Path = "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
