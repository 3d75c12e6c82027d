// ABOUTME: TCP dialing and the shared connection handle
// ABOUTME: Compare-and-clear close so Stop never races the worker teardown
package bridge

import (
	"net"
	"sync"
	"time"
)

// DialFunc opens the transport for one session attempt. Tests substitute
// in-memory implementations.
type DialFunc func(addr string, timeout time.Duration) (net.Conn, error)

// dialTCP connects with a bounded timeout and applies the stream socket
// options: Nagle off for low-latency writes, keep-alive probing so a dead
// peer is eventually detected by the kernel too.
func dialTCP(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(15 * time.Second)
	}
	return conn, nil
}

// connHolder is the one handle shared between the worker and an external
// Stop caller. Each side closes a connection only if it wins the
// compare-and-clear, so the socket is closed exactly once.
type connHolder struct {
	mu   sync.Mutex
	conn net.Conn
}

// store publishes the worker's current connection.
func (h *connHolder) store(c net.Conn) {
	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()
}

// release is the owning worker's teardown: close c only if it is still the
// published handle (an out-of-band shutdown may have taken it already).
func (h *connHolder) release(c net.Conn) {
	h.mu.Lock()
	owned := h.conn == c
	if owned {
		h.conn = nil
	}
	h.mu.Unlock()
	if owned {
		c.Close()
	}
}

// shutdown closes the current connection from a non-owning context,
// unblocking any in-flight blocking read or write immediately.
func (h *connHolder) shutdown() {
	h.mu.Lock()
	c := h.conn
	h.conn = nil
	h.mu.Unlock()
	if c != nil {
		c.Close()
	}
}
