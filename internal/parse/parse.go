// Package parse turns raw model text into validated JSON values. Backends
// with an enforced JSON mode are parsed strictly; the others are searched for
// balanced JSON values so that wrapper prose and code fences are tolerated.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects how raw text is turned into JSON.
type Mode int

const (
	// Strict parses the whole text as a single JSON value.
	Strict Mode = iota
	// Lenient searches the text for a JSON object or array that fits.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// ModeFor returns Strict when the backend enforces JSON output.
func ModeFor(enforcesJSON bool) Mode {
	if enforcesJSON {
		return Strict
	}
	return Lenient
}

// MalformedResponseError means no valid JSON value could be read.
type MalformedResponseError struct {
	Mode Mode
	Raw  string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model response (%s): %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("malformed model response (%s): no JSON value found", e.Mode)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SchemaViolationError means the JSON is valid but does not have the
// promised shape.
type SchemaViolationError struct {
	Missing []string
	Err     error
}

func (e *SchemaViolationError) Error() string {
	if len(e.Missing) > 0 {
		return "model response missing required keys: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("model response has wrong shape: %v", e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// Decode validates raw against schema and decodes it into T.
//
// In Lenient mode every balanced JSON value in raw is a candidate, in order,
// and the first one that satisfies the schema and decodes into T wins. When
// none does, the error reported is the first object candidate's, so a
// bracketed aside in the prose does not hide why the real answer failed.
func Decode[T any](raw string, mode Mode, schema Schema) (T, error) {
	var out T

	found, err := candidates(raw, mode)
	if err != nil {
		return out, err
	}

	var firstErr, objectErr error
	for _, c := range found {
		v, err := decodeCandidate[T](c, schema)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if objectErr == nil && c[0] == '{' {
			objectErr = err
		}
	}
	if objectErr != nil {
		return out, objectErr
	}
	return out, firstErr
}

func decodeCandidate[T any](data []byte, schema Schema) (T, error) {
	var out T
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return out, &SchemaViolationError{Err: err}
	}
	if missing := schema.Missing(v); len(missing) > 0 {
		return out, &SchemaViolationError{Missing: missing}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &SchemaViolationError{Err: err}
	}
	return out, nil
}

// candidates returns the JSON values raw may hold under mode. Strict mode
// accepts only the whole text.
func candidates(raw string, mode Mode) ([][]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return [][]byte{[]byte(trimmed)}, nil
	}
	if mode == Strict {
		return nil, &MalformedResponseError{Mode: mode, Raw: preview(raw), Err: fmt.Errorf("invalid JSON")}
	}

	var found [][]byte
	for _, c := range extract(raw) {
		found = append(found, []byte(c))
	}
	if len(found) == 0 {
		return nil, &MalformedResponseError{Mode: mode, Raw: preview(raw)}
	}
	return found, nil
}

// extract returns every top-level balanced JSON object or array in s that
// is itself valid JSON, in order. Braces inside string literals are ignored.
func extract(s string) []string {
	var found []string
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		end := matchClose(s, start)
		if end < 0 {
			continue
		}
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			found = append(found, candidate)
			start = end
		}
	}
	return found
}

// matchClose returns the index of the bracket closing the one at start,
// or -1 when the value never closes.
func matchClose(s string, start int) int {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func preview(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
