package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
)

// conn wraps one subscriber connection. Writes are serialized by sendMu
// (the underlying websocket permits only one concurrent writer) and
// bounded by a per-write timeout so a stalled peer cannot wedge a
// publish pass.
type conn struct {
	id   string
	sock *ws.Conn

	sendMu sync.Mutex
	closed atomic.Bool
}

// send writes one text frame, honoring the write timeout. Returns
// ErrConnClosed once the connection has been torn down.
func (c *conn) send(data []byte, timeout time.Duration) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Load() {
		return errConnClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.sock.Write(ctx, ws.MessageText, data)
}

// close marks the connection dead and closes the socket. Safe to call
// more than once.
func (c *conn) close(code ws.StatusCode, reason string) {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.sock.Close(code, reason)
	}
}
