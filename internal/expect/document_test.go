package expect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/embedlab/hiltest/internal/capture"
	"github.com/embedlab/hiltest/internal/report"
)

func TestParseLinesDocument(t *testing.T) {
	doc, err := Parse([]byte(`{
		"reception_mode": "lines",
		"response_timeout_ms": 5000,
		"stop_condition_line": "DONE",
		"expected_responses": [
			{"response_id": "boot", "type": "exact_line", "value": "OK"},
			{"response_id": "temp", "type": "regex_match", "pattern": "TEMP:\\d+"},
			{"type": "ignore_line_count", "count": 2}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if !doc.HasExpectations {
		t.Fatal("expectations not detected")
	}
	if doc.Mode() != capture.ModeLines {
		t.Fatalf("mode = %v", doc.Mode())
	}
	if len(doc.ExpectedLines) != 3 {
		t.Fatalf("expected lines = %d", len(doc.ExpectedLines))
	}
	if doc.ExpectedLines[2].Count != 2 {
		t.Fatalf("count = %d", doc.ExpectedLines[2].Count)
	}

	cfg := doc.CaptureConfig(10*time.Second, 2*time.Second, 20*time.Millisecond)
	if cfg.Overall != 5*time.Second {
		t.Fatalf("overall = %v, want 5s (from response_timeout_ms)", cfg.Overall)
	}
	if cfg.StopLine != "DONE" {
		t.Fatalf("stop line = %q", cfg.StopLine)
	}
}

func TestParseDocumentMode(t *testing.T) {
	doc, err := Parse([]byte(`{
		"reception_mode": "json_object",
		"expected_responses": {"temp": "TYPE:number", "unit": {"oneOf": ["C", "F"]}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Mode() != capture.ModeDocument {
		t.Fatalf("mode = %v", doc.Mode())
	}
	if doc.ExpectedDoc == nil {
		t.Fatal("expected doc not decoded")
	}
}

func TestParseNoExpectations(t *testing.T) {
	doc, err := Parse([]byte(`{"reception_mode": "lines"}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.HasExpectations {
		t.Fatal("phantom expectations")
	}

	r := report.New()
	Verify(r, capture.Result{Mode: capture.ModeLines}, doc)
	if r.Verdict() != report.Skipped {
		t.Fatalf("verdict = %v, want Skipped", r.Verdict())
	}
}

func TestParseRejectsUnknownMode(t *testing.T) {
	if _, err := Parse([]byte(`{"reception_mode": "morse"}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseDefaultTimeoutFallback(t *testing.T) {
	doc, err := Parse([]byte(`{"reception_mode": "lines"}`))
	if err != nil {
		t.Fatal(err)
	}
	cfg := doc.CaptureConfig(10*time.Second, 2*time.Second, 20*time.Millisecond)
	if cfg.Overall != 10*time.Second || cfg.Idle != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expected.json")
	body := `{"reception_mode": "lines", "expected_responses": [{"type": "exact_line", "value": "HI"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.ExpectedLines) != 1 || doc.ExpectedLines[0].Value != "HI" {
		t.Fatalf("doc = %+v", doc)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestVerifyCaptureFailure(t *testing.T) {
	doc, err := Parse([]byte(`{
		"reception_mode": "json_object",
		"expected_responses": {"ok": true}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	r := report.New()
	Verify(r, capture.Result{
		Mode:    capture.ModeDocument,
		Err:     capture.ErrIncomplete,
		Partial: `{"ok": tru`,
		Detail:  "no complete document before timeout",
	}, doc)

	if r.Verdict() != report.Fail {
		t.Fatalf("verdict = %v", r.Verdict())
	}
	out := r.Render()
	if !strings.Contains(out, "capture failed") || !strings.Contains(out, "ok\\\": tru") {
		t.Fatalf("partial buffer not surfaced:\n%s", out)
	}
}

func TestVerifyRawMode(t *testing.T) {
	doc, err := Parse([]byte(`{
		"reception_mode": "raw_stream",
		"expected_responses": "REGEX:^BANNER"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	r := report.New()
	Verify(r, capture.Result{Mode: capture.ModeRaw, Raw: "BANNER v2"}, doc)
	if r.Verdict() != report.Pass {
		t.Fatalf("verdict = %v\n%s", r.Verdict(), r.Render())
	}
}
