package transport

import (
	"sync"
	"time"
)

// Loopback is an in-memory transport for tests and dry runs. The test side
// plays the device: Feed queues device-to-host bytes, Sent returns what the
// harness wrote towards the device.
type Loopback struct {
	mu     sync.Mutex
	inbox  []byte // device -> host
	outbox []byte // host -> device
	closed bool
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// Feed queues bytes for the host to read.
func (l *Loopback) Feed(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.inbox = append(l.inbox, b...)
}

// FeedString queues a string for the host to read.
func (l *Loopback) FeedString(s string) { l.Feed([]byte(s)) }

// FeedAfter queues bytes after a delay, emulating a device that is still
// thinking. Useful for idle-timeout tests.
func (l *Loopback) FeedAfter(d time.Duration, b []byte) {
	time.AfterFunc(d, func() { l.Feed(b) })
}

// Sent returns a copy of everything written to the device so far.
func (l *Loopback) Sent() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, len(l.outbox))
	copy(out, l.outbox)
	return out
}

func (l *Loopback) Available() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return len(l.inbox), nil
}

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	n := copy(p, l.inbox)
	l.inbox = l.inbox[n:]
	return n, nil
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	l.outbox = append(l.outbox, p...)
	return len(p), nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
