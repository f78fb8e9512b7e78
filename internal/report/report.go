// Package report collects every comparison performed during one verification
// run, in input order, and derives the overall verdict. A full trail is
// always produced; nothing short-circuits on first failure.
package report

import (
	"fmt"
	"strings"
)

// Verdict is the overall outcome of a verification run.
type Verdict int

const (
	Pass Verdict = iota
	Fail
	// Skipped means no expectations were supplied at all. Treated as pass
	// for exit-code purposes; this leniency is deliberate.
	Skipped
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASSED"
	case Fail:
		return "FAILED"
	case Skipped:
		return "SKIPPED"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Check is one recorded comparison. Info entries carry context without
// affecting the verdict.
type Check struct {
	Description string
	Pass        bool
	Info        bool
}

// Report is owned by a single verification run: created, populated, and
// consumed within one call chain, never shared across runs.
type Report struct {
	checks  []Check
	skipped bool
}

func New() *Report {
	return &Report{}
}

// Add records one pass/fail comparison.
func (r *Report) Add(pass bool, format string, args ...any) {
	r.checks = append(r.checks, Check{Description: fmt.Sprintf(format, args...), Pass: pass})
}

// AddInfo records an informational entry that never fails the run.
func (r *Report) AddInfo(format string, args ...any) {
	r.checks = append(r.checks, Check{Description: fmt.Sprintf(format, args...), Pass: true, Info: true})
}

// MarkSkipped flags the run as having had no expectations to evaluate.
func (r *Report) MarkSkipped() {
	r.skipped = true
}

func (r *Report) Checks() []Check {
	return r.checks
}

// Verdict is the conjunction of every non-info check, or Skipped when no
// expectations were evaluated.
func (r *Report) Verdict() Verdict {
	if r.skipped {
		return Skipped
	}
	for _, c := range r.checks {
		if !c.Info && !c.Pass {
			return Fail
		}
	}
	return Pass
}

// Render produces the deterministic, ordered comparison log.
func (r *Report) Render() string {
	var b strings.Builder
	b.WriteString("--- Verification Report ---\n")
	if r.skipped {
		b.WriteString("no expectations defined\n")
	}
	for _, c := range r.checks {
		switch {
		case c.Info:
			b.WriteString("INFO ")
		case c.Pass:
			b.WriteString("PASS ")
		default:
			b.WriteString("FAIL ")
		}
		b.WriteString(c.Description)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Result: %s\n", r.Verdict())
	return b.String()
}
