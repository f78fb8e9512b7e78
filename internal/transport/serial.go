package transport

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var baudFlags = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// SerialPort is a raw-mode, non-blocking Linux serial line.
type SerialPort struct {
	mu     sync.Mutex
	fd     int
	path   string
	closed bool
}

// OpenSerial opens the device in raw 8N1 mode at the given baud rate and
// flushes any stale input so a capture starts from a clean buffer.
func OpenSerial(path string, baud int) (*SerialPort, error) {
	flag, ok := baudFlags[baud]
	if !ok {
		return nil, fmt.Errorf("serial: unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: tcgets %s: %w", path, err)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | flag
	tio.Ispeed = flag
	tio.Ospeed = flag
	// Non-blocking reads: return whatever is in the kernel buffer.
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: tcsets %s: %w", path, err)
	}

	// Let the line settle before discarding whatever the device emitted
	// while nobody was listening.
	time.Sleep(100 * time.Millisecond)
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: flush %s: %w", path, err)
	}

	return &SerialPort{fd: fd, path: path}, nil
}

func (s *SerialPort) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n, err := unix.IoctlGetInt(s.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("serial: fionread %s: %w", s.path, err)
	}
	return n, nil
}

func (s *SerialPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n, err := unix.Read(s.fd, p)
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("serial: read %s: %w", s.path, err)
	}
	return n, nil
}

func (s *SerialPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return n, fmt.Errorf("serial: write %s: %w", s.path, err)
	}
	return n, nil
}

func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
