package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrClosed is returned by all operations on a closed transport. The capture
// loop treats it as a terminal condition, never as idle time.
var ErrClosed = errors.New("transport: closed")

// Transport is a reliable, ordered, byte-oriented duplex connection to the
// device under test. There is no framing on the wire; callers segment the
// stream themselves.
type Transport interface {
	// Available reports how many bytes can be read without blocking.
	Available() (int, error)
	// Read fills p with currently-available bytes. It may return (0, nil)
	// when nothing has arrived yet.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Options selects and configures a transport implementation.
type Options struct {
	Kind        string // "serial", "tcp", "ws" or "loopback"
	Device      string // serial device path, e.g. /dev/ttyACM0
	Baud        int
	Target      string // tcp host:port or ws:// URL
	ProxyURL    string // optional socks5:// proxy for tcp targets
	DialTimeout time.Duration
	WriteRate   int // bytes per second written to the device; 0 disables pacing
}

// Open connects to the device and returns a ready transport. The write side
// is paced when Options.WriteRate is set.
func Open(ctx context.Context, o Options, logger *slog.Logger) (Transport, error) {
	var (
		tr  Transport
		err error
	)
	switch o.Kind {
	case "serial", "":
		tr, err = OpenSerial(o.Device, o.Baud)
	case "tcp":
		tr, err = DialTCP(ctx, o.Target, o.ProxyURL, o.DialTimeout)
	case "ws":
		tr, err = DialWS(ctx, o.Target, o.DialTimeout)
	case "loopback":
		tr = NewLoopback()
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", o.Kind)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("transport opened", "kind", o.Kind, "device", o.Device, "target", o.Target)
	if o.WriteRate > 0 {
		tr = Paced(tr, o.WriteRate)
	}
	return tr, nil
}
