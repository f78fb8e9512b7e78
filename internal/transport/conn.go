package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// connTransport adapts a net.Conn to the Transport contract. net.Conn has no
// "bytes waiting" probe, so Available performs a very short deadline-bounded
// read into an internal stash and reports the stash length.
type connTransport struct {
	mu     sync.Mutex
	conn   net.Conn
	stash  []byte
	closed bool
}

func newConnTransport(conn net.Conn) *connTransport {
	return &connTransport{conn: conn}
}

func (c *connTransport) Available() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Bytes that arrived before the close are still deliverable.
		if len(c.stash) > 0 {
			return len(c.stash), nil
		}
		return 0, ErrClosed
	}
	if err := c.pump(); err != nil {
		return 0, err
	}
	return len(c.stash), nil
}

func (c *connTransport) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed && len(c.stash) == 0 {
		return 0, ErrClosed
	}
	if !c.closed && len(c.stash) == 0 {
		if err := c.pump(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.stash)
	c.stash = c.stash[n:]
	return n, nil
}

// pump moves whatever the peer has already sent into the stash without
// blocking for longer than one millisecond.
func (c *connTransport) pump() error {
	buf := make([]byte, 4096)
	c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.stash = append(c.stash, buf[:n]...)
		}
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.closed = true
				if len(c.stash) > 0 {
					return nil // drain what arrived before the close
				}
				return ErrClosed
			}
			return err
		}
	}
}

func (c *connTransport) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.Write(p)
}

func (c *connTransport) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
