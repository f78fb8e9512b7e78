// Package sequence executes the stimulus side of a test run: a JSON action
// list driving GPIO lines and the transport, in order, before the response
// capture begins.
package sequence

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/embedlab/hiltest/internal/gpio"
)

// Action is one step of an emulation sequence. Fields beyond Type are
// interpreted per action type; irrelevant ones are ignored.
type Action struct {
	ID         string `json:"action_id"`
	Type       string `json:"type"`
	Line       int    `json:"line"`
	Direction  string `json:"direction"`
	Pull       string `json:"pull"`
	Initial    string `json:"initial"`
	Value      string `json:"value"`
	Active     string `json:"active"`
	Inactive   string `json:"inactive"`
	DurationMS int    `json:"duration_ms"`
	Payload    string `json:"payload"`
	PayloadHex string `json:"payload_hex"`
}

// Sequence is the on-disk document format.
type Sequence struct {
	TestName string   `json:"test_name"`
	Actions  []Action `json:"emulation_sequence"`
}

func Load(path string) (*Sequence, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sequence: read %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Sequence, error) {
	var s Sequence
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("sequence: parse: %w", err)
	}
	return &s, nil
}

// Writer is the transport-facing subset needed by send-bytes.
type Writer interface {
	Write(p []byte) (int, error)
}

// Result summarizes an executed sequence. Partial means at least one action
// was skipped or failed; the run proceeds to capture regardless, since a
// degraded stimulus still produces a diagnosable response.
type Result struct {
	Executed int
	Skipped  int
	Partial  bool
	Failures []string
}

// Runner applies actions against a GPIO driver and a transport writer.
type Runner struct {
	Driver  gpio.Driver
	Writer  Writer
	Logger  *slog.Logger
	Breathe time.Duration
}

func NewRunner(driver gpio.Driver, w Writer, logger *slog.Logger) *Runner {
	return &Runner{Driver: driver, Writer: w, Logger: logger, Breathe: 10 * time.Millisecond}
}

// Run executes every action in order. Unknown or malformed actions are
// skipped, not fatal; driver and writer errors are recorded the same way.
func (r *Runner) Run(ctx context.Context, seq *Sequence) Result {
	var res Result
	for i, a := range seq.Actions {
		if err := ctx.Err(); err != nil {
			res.Partial = true
			res.Failures = append(res.Failures, fmt.Sprintf("sequence aborted at action %d: %v", i, err))
			return res
		}

		label := a.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if err := r.apply(ctx, a); err != nil {
			r.Logger.Warn("action skipped", "action", label, "type", a.Type, "error", err)
			res.Skipped++
			res.Partial = true
			res.Failures = append(res.Failures, fmt.Sprintf("action %s (%s): %v", label, a.Type, err))
			continue
		}
		r.Logger.Debug("action applied", "action", label, "type", a.Type)
		res.Executed++

		if r.Breathe > 0 && i < len(seq.Actions)-1 {
			select {
			case <-time.After(r.Breathe):
			case <-ctx.Done():
			}
		}
	}
	return res
}

func (r *Runner) apply(ctx context.Context, a Action) error {
	switch a.Type {
	case "configure-line":
		dir, err := gpio.ParseDirection(a.Direction)
		if err != nil {
			return err
		}
		pull, err := gpio.ParsePull(a.Pull)
		if err != nil {
			return err
		}
		if err := r.Driver.ConfigureLine(a.Line, dir, pull); err != nil {
			return err
		}
		if a.Initial != "" && dir == gpio.Output {
			lvl, err := gpio.ParseLevel(a.Initial)
			if err != nil {
				return err
			}
			return r.Driver.SetLine(a.Line, lvl)
		}
		return nil

	case "set-line":
		lvl, err := gpio.ParseLevel(a.Value)
		if err != nil {
			return err
		}
		return r.Driver.SetLine(a.Line, lvl)

	case "read-line":
		lvl, err := r.Driver.ReadLine(a.Line)
		if err != nil {
			return err
		}
		r.Logger.Info("line read", "line", a.Line, "level", lvl.String())
		return nil

	case "pulse-line":
		if a.DurationMS <= 0 {
			return fmt.Errorf("pulse-line needs a positive duration_ms, got %d", a.DurationMS)
		}
		active := gpio.High
		if a.Active != "" {
			var err error
			active, err = gpio.ParseLevel(a.Active)
			if err != nil {
				return err
			}
		}
		if err := gpio.Pulse(ctx, r.Driver, a.Line, time.Duration(a.DurationMS)*time.Millisecond, active); err != nil {
			return err
		}
		// An explicit inactive level overrides the derived idle level.
		if a.Inactive != "" {
			idle, err := gpio.ParseLevel(a.Inactive)
			if err != nil {
				return err
			}
			return r.Driver.SetLine(a.Line, idle)
		}
		return nil

	case "send-bytes":
		payload, err := decodePayload(a)
		if err != nil {
			return err
		}
		_, err = r.Writer.Write(payload)
		return err

	case "delay":
		if a.DurationMS <= 0 {
			return fmt.Errorf("delay needs a positive duration_ms, got %d", a.DurationMS)
		}
		select {
		case <-time.After(time.Duration(a.DurationMS) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

func decodePayload(a Action) ([]byte, error) {
	switch {
	case a.PayloadHex != "":
		b, err := hex.DecodeString(a.PayloadHex)
		if err != nil {
			return nil, fmt.Errorf("payload_hex: %w", err)
		}
		return b, nil
	case a.Payload != "":
		return []byte(a.Payload), nil
	default:
		return nil, fmt.Errorf("send-bytes needs payload or payload_hex")
	}
}
