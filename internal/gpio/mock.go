package gpio

import (
	"log/slog"
	"sync"
)

// Mock keeps line state in memory and logs every call. Input lines read a
// value preloaded with SetInput, Low by default.
type Mock struct {
	mu     sync.Mutex
	lines  map[int]*mockLine
	logger *slog.Logger
	closed bool
}

type mockLine struct {
	dir   Direction
	pull  Pull
	level Level
}

func NewMock(logger *slog.Logger) *Mock {
	return &Mock{lines: make(map[int]*mockLine), logger: logger}
}

func (m *Mock) ConfigureLine(line int, dir Direction, pull Pull) error {
	if err := validLine(line); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &mockLine{dir: dir, pull: pull}
	// An input line floats at its pull-derived level until SetInput overrides.
	if dir == Input && pull == PullUp {
		l.level = High
	}
	m.lines[line] = l
	m.logger.Info("gpio configure", "driver", "mock", "line", line, "direction", dir.String(), "pull", pull)
	return nil
}

func (m *Mock) SetLine(line int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[line]
	if !ok {
		return ErrNotConfigured
	}
	if l.dir != Output {
		return ErrWrongDirection
	}
	l.level = level
	m.logger.Info("gpio set", "driver", "mock", "line", line, "level", level.String())
	return nil
}

func (m *Mock) ReadLine(line int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[line]
	if !ok {
		return Low, ErrNotConfigured
	}
	if l.dir != Input {
		return Low, ErrWrongDirection
	}
	m.logger.Info("gpio read", "driver", "mock", "line", line, "level", l.level.String())
	return l.level, nil
}

// SetInput preloads the value the next ReadLine returns. Test hook only.
func (m *Mock) SetInput(line int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lines[line]; ok && l.dir == Input {
		l.level = level
	}
}

// Output reports the last level written to an output line.
func (m *Mock) Output(line int) (Level, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[line]
	if !ok || l.dir != Output {
		return Low, false
	}
	return l.level, true
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.lines = make(map[int]*mockLine)
	m.logger.Info("gpio closed", "driver", "mock")
	return nil
}
