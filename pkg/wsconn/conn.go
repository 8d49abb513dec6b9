// Package wsconn carries the line protocol over WebSocket: every text frame
// is one line in each direction.
package wsconn

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// Conn adapts a WebSocket connection to a newline-delimited byte stream.
type Conn struct {
	ws *websocket.Conn

	pending []byte

	writeMu sync.Mutex
	outBuf  []byte

	closeOnce sync.Once
	closeErr  error
}

// New wraps ws.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read returns the next frame as a newline-terminated line. Line breaks
// inside a frame never split it into several lines. A normal close
// from the peer is reported as io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.pending = append(frameLine(data), '\n')
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends every complete line in p as its own text frame.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.outBuf = append(c.outBuf, p...)
	for {
		i := bytes.IndexByte(c.outBuf, '\n')
		if i < 0 {
			break
		}
		line := c.outBuf[:i]
		if err := c.ws.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
		c.outBuf = c.outBuf[i+1:]
	}
	return len(p), nil
}

// Close sends a close frame and closes the underlying connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// frameLine flattens one frame into one line: trailing line breaks are
// dropped and embedded ones become spaces.
func frameLine(data []byte) []byte {
	data = bytes.TrimRight(data, "\r\n")
	return bytes.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, data)
}

func isClosed(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
