package client

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn presents a websocket to a TCP bridge as a byte stream. Each
// binary message is a chunk of the pager stream; message boundaries mean
// nothing.
type wsConn struct {
	ws *websocket.Conn

	readMu sync.Mutex
	buf    bytes.Buffer

	writeMu sync.Mutex
}

// DialWebSocket connects to a websocket bridge at rawURL (ws:// or wss://).
func DialWebSocket(rawURL string) (net.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}
	ws, _, err := dialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for c.buf.Len() == 0 {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if kind != websocket.BinaryMessage && kind != websocket.TextMessage {
			continue
		}
		c.buf.Write(data)
	}
	return c.buf.Read(p)
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
