package csms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocols offered during the WebSocket handshake, most preferred first.
var Subprotocols = []string{"ocpp2.0.1", "ocpp2.0"}

// WebSocketConfig configures a WebSocketClient.
type WebSocketConfig struct {
	// Endpoint is the CSMS base URL (e.g. "ws://csms.example:9000/ocpp").
	// The station id is appended as the final path segment.
	Endpoint string

	// StationID is the charging station identity.
	StationID string

	// HandshakeTimeout bounds the dial + upgrade (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write (default: 10s).
	WriteTimeout time.Duration
}

// WebSocketClient is a Transport over a WebSocket connection to a CSMS.
type WebSocketClient struct {
	config WebSocketConfig

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	handler Handler
	closing bool
}

// NewWebSocketClient creates a client for the given CSMS endpoint.
func NewWebSocketClient(config WebSocketConfig) *WebSocketClient {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &WebSocketClient{config: config}
}

// Connect dials the CSMS and starts the read loop.
func (c *WebSocketClient) Connect(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		Subprotocols:     Subprotocols,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	url := fmt.Sprintf("%s/%s", c.config.Endpoint, c.config.StationID)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c.conn = conn
	c.handler = handler
	c.closing = false

	go c.readLoop(conn, handler)

	return nil
}

// Send transmits one text frame. Writes are serialized; the underlying
// connection permits only one concurrent writer.
func (c *WebSocketClient) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the connection. The handler's OnDisconnect fires with a
// nil error for this locally initiated close.
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.closing = true
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return conn.Close()
}

// Connected reports whether the connection is up.
func (c *WebSocketClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// readLoop delivers inbound frames until the connection drops.
func (c *WebSocketClient) readLoop(conn *websocket.Conn, handler Handler) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			if closing {
				handler.OnDisconnect(nil)
			} else {
				handler.OnDisconnect(err)
			}
			return
		}
		handler.OnMessage(data)
	}
}

// Compile-time interface satisfaction check.
var _ Transport = (*WebSocketClient)(nil)
