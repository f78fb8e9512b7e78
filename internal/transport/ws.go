package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// DialWS connects to a websocket serial bridge and exposes the binary
// message stream as a plain byte stream.
func DialWS(ctx context.Context, target string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", target, err)
	}
	conn.SetReadLimit(1 << 20)

	// NetConn gives deadline-capable reads, which the stash probe relies on.
	return newConnTransport(websocket.NetConn(context.Background(), conn, websocket.MessageBinary)), nil
}
