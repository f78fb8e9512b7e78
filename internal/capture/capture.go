// Package capture reconstructs logical response units from the unframed byte
// stream a device emits. Arrival granularity is unpredictable: one logical
// line or document may span many physical reads, and one read may carry
// several lines.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Mode selects how the raw byte stream is segmented.
type Mode int

const (
	// ModeLines splits on newlines and trims each line.
	ModeLines Mode = iota
	// ModeDocument waits for a single balanced-brace JSON document.
	ModeDocument
	// ModeRaw returns the whole accumulated buffer as one string.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeLines:
		return "lines"
	case ModeDocument:
		return "json_object"
	case ModeRaw:
		return "raw_stream"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps expectation-document mode names onto Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "lines", "":
		return ModeLines, nil
	case "json_object", "document":
		return ModeDocument, nil
	case "raw_stream", "raw":
		return ModeRaw, nil
	}
	return 0, fmt.Errorf("capture: unknown reception mode %q", s)
}

// Config bounds one capture operation.
type Config struct {
	// Overall bounds total wall time. Always wins over Idle.
	Overall time.Duration
	// Idle ends the capture early when no byte arrives for this long.
	Idle time.Duration
	// Poll is the sleep quantum when no bytes are waiting.
	Poll time.Duration
	// StopLine ends a lines-mode capture as soon as a line equals it.
	StopLine string
}

// ErrKind classifies capture failures. "No valid response" is an expected
// outcome to be verified against, so it travels as data rather than error.
type ErrKind int

const (
	ErrNone ErrKind = iota
	// ErrIncomplete: overall timeout expired before a well-formed document
	// could be reconstructed.
	ErrIncomplete
	// ErrTransport: the transport failed or was closed mid-capture.
	ErrTransport
)

// Result is the outcome of one capture operation, immutable once returned.
type Result struct {
	Mode    Mode
	Lines   []string
	Doc     any
	Raw     string
	Err     ErrKind
	Partial string // buffer contents at failure time, never discarded
	Detail  string
}

// Failed reports whether the capture ended in an error state.
func (r Result) Failed() bool { return r.Err != ErrNone }

// Reader is the slice of the transport contract the accumulator needs.
type Reader interface {
	Available() (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Run polls tr until a termination condition fires and returns the
// reconstructed result. Termination priority per iteration: overall timeout,
// idle timeout, mode-specific completion. Cancellation of ctx closes the
// transport and surfaces as ErrTransport.
func Run(ctx context.Context, tr Reader, mode Mode, cfg Config, logger *slog.Logger) Result {
	if cfg.Poll <= 0 {
		cfg.Poll = 20 * time.Millisecond
	}

	logger.Debug("capture start",
		"mode", mode.String(), "overall", cfg.Overall, "idle", cfg.Idle, "stop_line", cfg.StopLine)

	var (
		buf      []byte
		lines    []string
		readBuf  = make([]byte, 4096)
		start    = time.Now()
		lastData = time.Now()
	)

	for {
		select {
		case <-ctx.Done():
			tr.Close()
			return Result{
				Mode: mode, Lines: lines, Err: ErrTransport,
				Partial: string(buf), Detail: "capture cancelled",
			}
		default:
		}

		if time.Since(start) >= cfg.Overall {
			break
		}
		if time.Since(lastData) >= cfg.Idle {
			// An in-progress document extends the idle budget: keep polling
			// until the overall deadline while braces are unbalanced.
			if !(mode == ModeDocument && bytes.Count(buf, []byte("{")) > bytes.Count(buf, []byte("}"))) {
				logger.Debug("capture idle timeout", "idle", cfg.Idle)
				break
			}
		}

		avail, err := tr.Available()
		if err != nil {
			return Result{
				Mode: mode, Lines: lines, Err: ErrTransport,
				Partial: string(buf), Detail: err.Error(),
			}
		}
		grew := false
		if avail > 0 {
			n, err := tr.Read(readBuf)
			if err != nil {
				return Result{
					Mode: mode, Lines: lines, Err: ErrTransport,
					Partial: string(buf), Detail: err.Error(),
				}
			}
			if n > 0 {
				buf = append(buf, readBuf[:n]...)
				lastData = time.Now()
				grew = true
			}
		} else {
			time.Sleep(cfg.Poll)
		}

		switch mode {
		case ModeLines:
			var stopped bool
			lines, buf, stopped = drainLines(lines, buf, cfg.StopLine, logger)
			if stopped {
				return Result{Mode: mode, Lines: lines}
			}
		case ModeDocument:
			if grew && bytes.Contains(buf, []byte("}")) {
				if doc, ok := tryParseDocument(buf); ok {
					return Result{Mode: mode, Doc: doc}
				}
			}
		}
	}

	return finalize(mode, buf, lines, logger)
}

// drainLines extracts every complete line from buf, returning the updated
// line list, the remaining partial tail, and whether the stop line was hit.
func drainLines(lines []string, buf []byte, stopLine string, logger *slog.Logger) ([]string, []byte, bool) {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return lines, buf, false
		}
		line := strings.TrimSpace(string(buf[:i]))
		buf = buf[i+1:]
		if line == "" {
			continue
		}
		lines = append(lines, line)
		logger.Debug("line received", "line", line)
		if stopLine != "" && line == stopLine {
			logger.Debug("stop line met", "line", line)
			return lines, buf, true
		}
	}
}

// tryParseDocument attempts the first-{ .. last-} heuristic. A failure only
// means the document has not fully arrived yet. Known limitation: braces
// inside string literals can confuse the scan; replace with a streaming
// parser if devices start emitting such payloads.
func tryParseDocument(buf []byte) (any, bool) {
	first := bytes.IndexByte(buf, '{')
	last := bytes.LastIndexByte(buf, '}')
	if first < 0 || last < first {
		return nil, false
	}
	var doc any
	if err := json.Unmarshal(buf[first:last+1], &doc); err != nil {
		return nil, false
	}
	return doc, true
}

func finalize(mode Mode, buf []byte, lines []string, logger *slog.Logger) Result {
	switch mode {
	case ModeLines:
		if tail := strings.TrimSpace(string(buf)); tail != "" {
			lines = append(lines, tail)
			logger.Debug("line received from final buffer", "line", tail)
		}
		return Result{Mode: mode, Lines: lines}
	case ModeDocument:
		if doc, ok := tryParseDocument(buf); ok {
			return Result{Mode: mode, Doc: doc}
		}
		logger.Warn("capture ended without a parseable document", "buffered", len(buf))
		return Result{
			Mode: mode, Err: ErrIncomplete, Partial: string(buf),
			Detail: "no complete document before timeout",
		}
	default:
		return Result{Mode: mode, Raw: strings.TrimSpace(string(buf))}
	}
}
