package expect

import (
	"github.com/embedlab/hiltest/internal/capture"
	"github.com/embedlab/hiltest/internal/report"
)

// Verify matches a capture result against an expectation document and
// records every comparison into r. A nil document or one without
// expectations marks the run skipped; that is a documented leniency, not an
// oversight.
func Verify(r *report.Report, res capture.Result, doc *Document) {
	if doc == nil || !doc.HasExpectations {
		r.MarkSkipped()
		return
	}

	if res.Failed() {
		r.Add(false, "capture failed (%s); buffered partial data: %q", res.Detail, res.Partial)
		return
	}

	switch doc.Mode() {
	case capture.ModeLines:
		MatchLines(r, res.Lines, doc.ExpectedLines, doc.Strict)

	case capture.ModeDocument:
		discrepancies := MatchDocument(res.Doc, doc.ExpectedDoc)
		if len(discrepancies) == 0 {
			r.Add(true, "received document matches expected structure and values")
			return
		}
		for _, d := range discrepancies {
			r.Add(false, "%s", d.String())
		}

	case capture.ModeRaw:
		// Raw mode reuses the structural string rules on the whole payload:
		// a validator string or literal in expected_responses applies to the
		// raw capture directly.
		discrepancies := MatchDocument(res.Raw, doc.ExpectedDoc)
		if len(discrepancies) == 0 {
			r.Add(true, "raw payload matches expectation")
			return
		}
		for _, d := range discrepancies {
			r.Add(false, "%s", d.String())
		}
	}
}
