package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// gorillaConn adapts *websocket.Conn to the Connection interface.
type gorillaConn struct {
	conn *websocket.Conn
}

// wrapConn wraps a live gorilla connection.
func wrapConn(conn *websocket.Conn) Connection {
	return &gorillaConn{conn: conn}
}

func (g *gorillaConn) WriteMessage(mt int, data []byte) error {
	return g.conn.WriteMessage(mt, data)
}

func (g *gorillaConn) ReadMessage() (mt int, p []byte, err error) {
	return g.conn.ReadMessage()
}

func (g *gorillaConn) Close() error {
	return g.conn.Close()
}

func (g *gorillaConn) SetReadDeadline(deadline time.Time) error {
	return g.conn.SetReadDeadline(deadline)
}

func (g *gorillaConn) SetWriteDeadline(deadline time.Time) error {
	return g.conn.SetWriteDeadline(deadline)
}

func (g *gorillaConn) SetReadLimit(n int64) {
	g.conn.SetReadLimit(n)
}

func (g *gorillaConn) SetPongHandler(fn func(string) error) {
	g.conn.SetPongHandler(fn)
}

// RemoteAddr tolerates a nil address, which mocks and half-closed
// connections can produce.
func (g *gorillaConn) RemoteAddr() string {
	if addr := g.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
