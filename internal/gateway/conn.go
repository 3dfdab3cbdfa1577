package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn wraps a websocket connection with a write lock so frame pushes and
// session replies do not interleave.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWsConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
