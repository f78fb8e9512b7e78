// Package gpio abstracts the digital I/O lines used to stimulate the device
// under test. Two drivers are provided: a Linux sysfs driver for real
// hardware and a mock that records every call for bench-less development.
package gpio

import (
	"context"
	"errors"
	"time"
)

// Direction of a configured line.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "in"
	}
	return "out"
}

// Level is the logical state of a line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Pull selects the internal resistor for input lines. Not every driver can
// honor it; sysfs in particular ignores it silently.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

var (
	ErrNotConfigured  = errors.New("gpio: line not configured")
	ErrWrongDirection = errors.New("gpio: operation not valid for line direction")
	ErrInvalidLine    = errors.New("gpio: line number out of range")
)

// maxLine bounds line numbers; no supported SoC exposes more.
const maxLine = 1023

func validLine(line int) error {
	if line < 0 || line > maxLine {
		return ErrInvalidLine
	}
	return nil
}

// Driver is the surface the sequence runner drives. Implementations must
// reject use of lines that were never configured and direction-mismatched
// operations with the sentinel errors above.
type Driver interface {
	ConfigureLine(line int, dir Direction, pull Pull) error
	SetLine(line int, level Level) error
	ReadLine(line int) (Level, error)
	Close() error
}

// Pulse drives line to active for the given duration, then back to the idle
// level. Cancellation cuts the wait short but still restores the idle level.
func Pulse(ctx context.Context, d Driver, line int, duration time.Duration, active Level) error {
	idle := Low
	if active == Low {
		idle = High
	}
	if err := d.SetLine(line, active); err != nil {
		return err
	}
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		if err := d.SetLine(line, idle); err != nil {
			return err
		}
		return ctx.Err()
	}
	return d.SetLine(line, idle)
}

// ParseDirection maps the wire names used in action files.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "in", "input":
		return Input, nil
	case "out", "output":
		return Output, nil
	default:
		return Input, errors.New("gpio: unknown direction " + s)
	}
}

// ParsePull maps the wire names used in action files.
func ParsePull(s string) (Pull, error) {
	switch s {
	case "", "none", "floating":
		return PullNone, nil
	case "up", "pull_up":
		return PullUp, nil
	case "down", "pull_down":
		return PullDown, nil
	default:
		return PullNone, errors.New("gpio: unknown pull " + s)
	}
}

// ParseLevel maps the wire names used in action files. Numeric 0/1 are
// accepted alongside the symbolic names.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "0", "low":
		return Low, nil
	case "1", "high":
		return High, nil
	default:
		return Low, errors.New("gpio: unknown level " + s)
	}
}
