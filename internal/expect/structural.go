package expect

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Validator strings understood by the structural matcher. A string leaf in
// the expectation document matching one of these forms is a typed assertion;
// any other string is a literal.
const (
	validatorAny          = "ANY"
	validatorAnyOrMissing = "ANY_OR_MISSING"
	prefixType            = "TYPE:"
	prefixRegex           = "REGEX:"
	prefixGT              = "VALUE_GT:"
	prefixGTE             = "VALUE_GTE:"
	prefixLT              = "VALUE_LT:"
	prefixLTE             = "VALUE_LTE:"
)

// optionalKey marks an expected object as tolerable-when-missing.
const optionalKey = "$optional"

// oneOfKey is the structured alternative validator: the received value must
// match at least one branch. This replaces the old CHOICE:[...] string
// encoding, which never parsed cleanly.
const oneOfKey = "oneOf"

// Discrepancy is one structured mismatch finding, addressed by its path in
// the document (e.g. "root.readings[2].unit").
type Discrepancy struct {
	Path    string
	Message string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}

// MatchDocument recursively diffs a received document against an expectation
// document whose leaves may mix literals and validator strings at any depth.
// An empty result means the documents match.
func MatchDocument(received, expected any) []Discrepancy {
	var out []Discrepancy
	compareValue(received, expected, "root", &out)
	return out
}

func compareValue(received, expected any, path string, out *[]Discrepancy) {
	switch exp := expected.(type) {
	case map[string]any:
		if branches, ok := oneOfBranches(exp); ok {
			compareOneOf(received, branches, path, out)
			return
		}
		rec, ok := received.(map[string]any)
		if !ok {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("expected object, got %s", kindOf(received))})
			return
		}
		compareObjects(rec, exp, path, out)

	case []any:
		rec, ok := received.([]any)
		if !ok {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("expected array, got %s", kindOf(received))})
			return
		}
		if len(rec) != len(exp) {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("array length mismatch: expected %d, got %d", len(exp), len(rec))})
			return
		}
		for i := range exp {
			compareValue(rec[i], exp[i], fmt.Sprintf("%s[%d]", path, i), out)
		}

	case string:
		compareStringExpectation(received, exp, path, out)

	default:
		// Numbers, booleans, null: exact equality.
		if !reflect.DeepEqual(received, expected) {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("value mismatch: expected %v, got %v", render(expected), render(received))})
		}
	}
}

func compareObjects(rec, exp map[string]any, path string, out *[]Discrepancy) {
	// Deterministic discrepancy order regardless of map iteration.
	keys := make([]string, 0, len(exp))
	for k := range exp {
		if k != optionalKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		expVal := exp[key]
		childPath := path + "." + key
		recVal, present := rec[key]
		if !present {
			if missingOK(expVal) {
				continue
			}
			*out = append(*out, Discrepancy{childPath, "missing key in received data"})
			continue
		}
		compareValue(recVal, expVal, childPath, out)
	}
}

// missingOK reports whether an absent key is acceptable for this expected
// value: either the ANY_OR_MISSING validator or an object carrying the
// $optional marker.
func missingOK(expVal any) bool {
	if s, ok := expVal.(string); ok && s == validatorAnyOrMissing {
		return true
	}
	if m, ok := expVal.(map[string]any); ok {
		if opt, ok := m[optionalKey].(bool); ok && opt {
			return true
		}
	}
	return false
}

func oneOfBranches(m map[string]any) ([]any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	branches, ok := m[oneOfKey].([]any)
	return branches, ok
}

func compareOneOf(received any, branches []any, path string, out *[]Discrepancy) {
	if len(branches) == 0 {
		*out = append(*out, Discrepancy{path, "oneOf with no branches can never match"})
		return
	}
	for _, branch := range branches {
		var branchOut []Discrepancy
		compareValue(received, branch, path, &branchOut)
		if len(branchOut) == 0 {
			return
		}
	}
	*out = append(*out, Discrepancy{path, fmt.Sprintf("value %v matched none of %d oneOf branches", render(received), len(branches))})
}

func compareStringExpectation(received any, exp, path string, out *[]Discrepancy) {
	switch {
	case exp == validatorAny, exp == validatorAnyOrMissing:
		return

	case strings.HasPrefix(exp, prefixType):
		name := strings.TrimPrefix(exp, prefixType)
		if !knownKind(name) {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("invalid expected type %q", name)})
			return
		}
		if got := kindOf(received); got != name {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("type mismatch: expected %s, got %s", name, got)})
		}

	case strings.HasPrefix(exp, prefixRegex):
		pattern := strings.TrimPrefix(exp, prefixRegex)
		re, err := regexp.Compile(pattern)
		if err != nil {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("invalid regex %q: %v", pattern, err)})
			return
		}
		s, ok := received.(string)
		if !ok || !re.MatchString(s) {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("value %v does not match pattern %q", render(received), pattern)})
		}

	case strings.HasPrefix(exp, prefixGTE):
		compareNumeric(received, strings.TrimPrefix(exp, prefixGTE), ">=", path, out)
	case strings.HasPrefix(exp, prefixGT):
		compareNumeric(received, strings.TrimPrefix(exp, prefixGT), ">", path, out)
	case strings.HasPrefix(exp, prefixLTE):
		compareNumeric(received, strings.TrimPrefix(exp, prefixLTE), "<=", path, out)
	case strings.HasPrefix(exp, prefixLT):
		compareNumeric(received, strings.TrimPrefix(exp, prefixLT), "<", path, out)

	default:
		if s, ok := received.(string); !ok || s != exp {
			*out = append(*out, Discrepancy{path, fmt.Sprintf("value mismatch: expected %q, got %v", exp, render(received))})
		}
	}
}

func compareNumeric(received any, limitStr, op, path string, out *[]Discrepancy) {
	limit, err := strconv.ParseFloat(limitStr, 64)
	if err != nil {
		*out = append(*out, Discrepancy{path, fmt.Sprintf("invalid number %q for VALUE_%s validator", limitStr, opName(op))})
		return
	}
	num, ok := received.(float64)
	if !ok {
		*out = append(*out, Discrepancy{path, fmt.Sprintf("expected a number %s %v, got %s", op, limit, kindOf(received))})
		return
	}
	var pass bool
	switch op {
	case ">":
		pass = num > limit
	case ">=":
		pass = num >= limit
	case "<":
		pass = num < limit
	case "<=":
		pass = num <= limit
	}
	if !pass {
		*out = append(*out, Discrepancy{path, fmt.Sprintf("value %v is not %s %v", num, op, limit)})
	}
}

func opName(op string) string {
	switch op {
	case ">":
		return "GT"
	case ">=":
		return "GTE"
	case "<":
		return "LT"
	case "<=":
		return "LTE"
	}
	return op
}

// kindOf names the dynamic kind of a decoded JSON value using the
// TYPE: validator vocabulary.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func knownKind(name string) bool {
	switch name {
	case "null", "boolean", "number", "string", "array", "object":
		return true
	}
	return false
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", v)
}

