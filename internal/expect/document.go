// Package expect loads declarative expectation documents and matches
// captured device output against them. Two independent algorithms exist:
// ordered line-sequence matching and recursive structural matching; the
// document's reception mode selects which one runs.
package expect

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/embedlab/hiltest/internal/capture"
)

// Line expectation types.
const (
	TypeExactLine   = "exact_line"
	TypeContains    = "contains_string"
	TypeRegex       = "regex_match"
	TypeIgnoreCount = "ignore_line_count"
)

// LineExpectation is one entry of an ordered line-sequence expectation.
type LineExpectation struct {
	ID      string `json:"response_id"`
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Document is a parsed expectation document. ExpectedLines is populated in
// lines mode, ExpectedDoc otherwise. HasExpectations is false when the file
// carries no expected_responses at all, which downgrades the run to SKIPPED.
type Document struct {
	ReceptionMode     string `json:"reception_mode"`
	ResponseTimeoutMS int    `json:"response_timeout_ms"`
	StopLine          string `json:"stop_condition_line"`
	// Strict switches the line matcher to lock-step cursor advancement
	// instead of the lenient resynchronize-on-mismatch policy.
	Strict bool `json:"strict"`

	ExpectedLines   []LineExpectation
	ExpectedDoc     any
	HasExpectations bool
}

type rawDocument struct {
	ReceptionMode     string          `json:"reception_mode"`
	ResponseTimeoutMS int             `json:"response_timeout_ms"`
	StopLine          string          `json:"stop_condition_line"`
	Strict            bool            `json:"strict"`
	ExpectedResponses json.RawMessage `json:"expected_responses"`
}

// Load reads and parses an expectation document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("expect: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("expect: %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes an expectation document. The shape of expected_responses is
// polymorphic: an array in lines mode, any structured value otherwise.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	mode, err := capture.ParseMode(raw.ReceptionMode)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ReceptionMode:     raw.ReceptionMode,
		ResponseTimeoutMS: raw.ResponseTimeoutMS,
		StopLine:          raw.StopLine,
		Strict:            raw.Strict,
	}

	if len(raw.ExpectedResponses) == 0 || string(raw.ExpectedResponses) == "null" {
		return doc, nil
	}
	doc.HasExpectations = true

	if mode == capture.ModeLines {
		if err := json.Unmarshal(raw.ExpectedResponses, &doc.ExpectedLines); err != nil {
			return nil, fmt.Errorf("decode expected_responses as line sequence: %w", err)
		}
		return doc, nil
	}
	if err := json.Unmarshal(raw.ExpectedResponses, &doc.ExpectedDoc); err != nil {
		return nil, fmt.Errorf("decode expected_responses: %w", err)
	}
	return doc, nil
}

// Mode returns the parsed reception mode. Parse has already validated it.
func (d *Document) Mode() capture.Mode {
	m, _ := capture.ParseMode(d.ReceptionMode)
	return m
}

// CaptureConfig converts the document's reception parameters into frame
// accumulator bounds, falling back to the given defaults.
func (d *Document) CaptureConfig(defOverall, defIdle, poll time.Duration) capture.Config {
	overall := defOverall
	if d.ResponseTimeoutMS > 0 {
		overall = time.Duration(d.ResponseTimeoutMS) * time.Millisecond
	}
	return capture.Config{
		Overall:  overall,
		Idle:     defIdle,
		Poll:     poll,
		StopLine: d.StopLine,
	}
}
