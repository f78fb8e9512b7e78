package transport

import (
	"context"

	"golang.org/x/time/rate"
)

// pacedTransport throttles writes to a byte-per-second budget so the harness
// cannot overrun a slow UART on the device side. Reads are untouched.
type pacedTransport struct {
	Transport
	limiter *rate.Limiter
}

// Paced wraps t with a write budget of bytesPerSec (burst of one budget's
// worth). For a UART, bytesPerSec is roughly baud/10.
func Paced(t Transport, bytesPerSec int) Transport {
	return &pacedTransport{
		Transport: t,
		limiter:   rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
	}
}

func (p *pacedTransport) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		chunk := b[written:]
		if len(chunk) > p.limiter.Burst() {
			chunk = chunk[:p.limiter.Burst()]
		}
		if err := p.limiter.WaitN(context.Background(), len(chunk)); err != nil {
			return written, err
		}
		n, err := p.Transport.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
