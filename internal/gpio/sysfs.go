package gpio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sysfs drives lines through the legacy /sys/class/gpio interface. Root is
// injectable so tests can point it at a temp directory. Pull resistors are
// not expressible through sysfs and are logged then ignored.
type Sysfs struct {
	root   string
	logger *slog.Logger

	mu       sync.Mutex
	exported map[int]Direction
}

func NewSysfs(root string, logger *slog.Logger) *Sysfs {
	if root == "" {
		root = "/sys/class/gpio"
	}
	return &Sysfs{root: root, logger: logger, exported: make(map[int]Direction)}
}

func (s *Sysfs) pinDir(line int) string {
	return filepath.Join(s.root, fmt.Sprintf("gpio%d", line))
}

func (s *Sysfs) ConfigureLine(line int, dir Direction, pull Pull) error {
	if err := validLine(line); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.pinDir(line)); err != nil {
		if err := os.WriteFile(filepath.Join(s.root, "export"), []byte(strconv.Itoa(line)), 0o644); err != nil {
			return fmt.Errorf("gpio: export line %d: %w", line, err)
		}
		// The kernel creates the gpioN directory asynchronously.
		deadline := time.Now().Add(500 * time.Millisecond)
		for {
			if _, err := os.Stat(s.pinDir(line)); err == nil {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("gpio: line %d did not appear after export", line)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := os.WriteFile(filepath.Join(s.pinDir(line), "direction"), []byte(dir.String()), 0o644); err != nil {
		return fmt.Errorf("gpio: set direction on line %d: %w", line, err)
	}
	if pull != PullNone {
		s.logger.Warn("pull resistors are not supported by sysfs, ignoring", "line", line)
	}
	s.exported[line] = dir
	s.logger.Info("gpio configure", "driver", "sysfs", "line", line, "direction", dir.String())
	return nil
}

func (s *Sysfs) SetLine(line int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.exported[line]
	if !ok {
		return ErrNotConfigured
	}
	if dir != Output {
		return ErrWrongDirection
	}
	if err := os.WriteFile(filepath.Join(s.pinDir(line), "value"), []byte(strconv.Itoa(int(level))), 0o644); err != nil {
		return fmt.Errorf("gpio: write line %d: %w", line, err)
	}
	s.logger.Info("gpio set", "driver", "sysfs", "line", line, "level", level.String())
	return nil
}

func (s *Sysfs) ReadLine(line int) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.exported[line]
	if !ok {
		return Low, ErrNotConfigured
	}
	if dir != Input {
		return Low, ErrWrongDirection
	}
	raw, err := os.ReadFile(filepath.Join(s.pinDir(line), "value"))
	if err != nil {
		return Low, fmt.Errorf("gpio: read line %d: %w", line, err)
	}
	switch strings.TrimSpace(string(raw)) {
	case "0":
		return Low, nil
	case "1":
		return High, nil
	default:
		return Low, fmt.Errorf("gpio: line %d reported %q", line, strings.TrimSpace(string(raw)))
	}
}

// Close unexports every line this driver configured. Errors are logged and
// swallowed per line so one stuck pin does not leak the rest.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for line := range s.exported {
		if err := os.WriteFile(filepath.Join(s.root, "unexport"), []byte(strconv.Itoa(line)), 0o644); err != nil {
			s.logger.Warn("gpio unexport failed", "line", line, "error", err)
		}
	}
	s.exported = make(map[int]Direction)
	return nil
}
