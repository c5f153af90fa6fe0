package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"vaani/internal/ports"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second

	// Audio turns carry base64 clips inline, so allow generous frames.
	maxMessageSize = 16 * 1024 * 1024
)

// WSDialer dials the service endpoint over websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

func NewWSDialer() *WSDialer {
	return &WSDialer{HandshakeTimeout: defaultHandshakeTimeout}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (ports.Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WriteMessage sends one envelope as a text frame; the service reads the
// socket in text mode.
func (c *wsConn) WriteMessage(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return c.conn.Close()
}
