package expect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/embedlab/hiltest/internal/report"
)

// MatchLines compares received lines against an ordered expectation sequence
// using two forward-only cursors; it never backtracks or reorders.
//
// On a failed comparison the lenient policy advances only the received
// cursor, keeping the same expectation pending so a single spurious line
// (boot banner, debug print) does not cascade. strict disables that and
// advances both cursors on failure.
func MatchLines(r *report.Report, received []string, expected []LineExpectation, strict bool) {
	expIdx, recIdx := 0, 0

	for expIdx < len(expected) && recIdx < len(received) {
		exp := expected[expIdx]
		id := exp.ID
		if id == "" {
			id = fmt.Sprintf("exp_line_%d", expIdx)
		}

		if exp.Type == TypeIgnoreCount {
			remaining := len(received) - recIdx
			if remaining < exp.Count {
				r.Add(false, "%s: ignore_line_count wanted %d lines, only %d remained", id, exp.Count, remaining)
				recIdx = len(received)
			} else {
				r.Add(true, "%s: ignored %d lines", id, exp.Count)
				recIdx += exp.Count
			}
			expIdx++
			continue
		}

		line := received[recIdx]
		pass, desc := matchOne(exp, line)
		r.Add(pass, "%s: %s against line[%d] %q", id, desc, recIdx, line)

		if pass {
			expIdx++
			recIdx++
		} else if strict {
			expIdx++
			recIdx++
		} else {
			recIdx++
		}
	}

	for ; expIdx < len(expected); expIdx++ {
		exp := expected[expIdx]
		id := exp.ID
		if id == "" {
			id = fmt.Sprintf("exp_line_%d", expIdx)
		}
		r.Add(false, "%s: no received line left to match (%s)", id, describe(exp))
	}

	if recIdx < len(received) {
		r.AddInfo("%d received line(s) left unmatched after all expectations", len(received)-recIdx)
	}
}

func matchOne(exp LineExpectation, line string) (bool, string) {
	switch exp.Type {
	case TypeExactLine:
		return line == exp.Value, fmt.Sprintf("exact_line %q", exp.Value)
	case TypeContains:
		return strings.Contains(line, exp.Value), fmt.Sprintf("contains_string %q", exp.Value)
	case TypeRegex:
		re, err := regexp.Compile(exp.Pattern)
		if err != nil {
			return false, fmt.Sprintf("regex_match %q (invalid pattern: %v)", exp.Pattern, err)
		}
		return re.MatchString(line), fmt.Sprintf("regex_match %q", exp.Pattern)
	default:
		return false, fmt.Sprintf("unknown expectation type %q", exp.Type)
	}
}

func describe(exp LineExpectation) string {
	switch exp.Type {
	case TypeExactLine, TypeContains:
		return fmt.Sprintf("%s %q", exp.Type, exp.Value)
	case TypeRegex:
		return fmt.Sprintf("%s %q", exp.Type, exp.Pattern)
	case TypeIgnoreCount:
		return fmt.Sprintf("%s %d", exp.Type, exp.Count)
	}
	return fmt.Sprintf("type %q", exp.Type)
}
