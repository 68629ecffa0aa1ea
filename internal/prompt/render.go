package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"verdant/internal/parse"
)

// jsonSuffix is appended to every JSON template.
const jsonSuffix = "Respond with valid JSON only, exactly matching the structure above. No markdown, no explanation."

// Context is the data a template is rendered with. Values may be nested
// maps (database rows), slices and scalars.
type Context map[string]any

// ValidationError reports required context fields that were absent.
type ValidationError struct {
	Template string
	Missing  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", e.Template, strings.Join(e.Missing, ", "))
}

// Rendered is a prompt ready to send.
type Rendered struct {
	Template    string
	System      string
	Text        string
	Backend     string
	Temperature *float64
	MaxTokens   int
	JSON        bool
	Schema      parse.Schema
}

// Truncated returns the first n runes of the prompt text, used as the audit
// copy stored next to generated records.
func (r *Rendered) Truncated(n int) string {
	if utf8.RuneCountInString(r.Text) <= n {
		return r.Text
	}
	return string([]rune(r.Text)[:n])
}

// Render applies the template's defaults to ctx and executes the body.
// The caller's context is not modified.
func (c *Catalog) Render(name string, ctx Context) (*Rendered, error) {
	t, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return t.Render(ctx)
}

// Render executes the template. Required fields that are absent, null or
// empty produce a *ValidationError before anything else happens.
func (t *Template) Render(ctx Context) (*Rendered, error) {
	data, _ := normalize(map[string]any(ctx)).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	var missing []string
	for _, field := range t.Required {
		if isEmpty(lookup(data, field)) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Template: t.Name, Missing: missing}
	}

	for field, def := range t.Defaults {
		if isEmpty(lookup(data, field)) {
			assign(data, field, normalize(def))
		}
	}
	for _, field := range t.Optional {
		if lookup(data, field) == nil {
			assign(data, field, "")
		}
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Name, err)
	}

	text := strings.TrimSpace(buf.String())
	if t.JSON() {
		text += "\n\n" + jsonSuffix
	}

	return &Rendered{
		Template:    t.Name,
		System:      strings.TrimSpace(t.System),
		Text:        text,
		Backend:     t.Backend,
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
		JSON:        t.JSON(),
		Schema:      t.Schema,
	}, nil
}

// normalize deep-copies v into plain maps and slices. Nil values become ""
// so nothing renders as "<no value>", and whole floats become integers so
// large numbers do not print in exponent form.
func normalize(v any) any {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string, bool, int, int64:
		return x
	case float64:
		return wholeNumber(x)
	case float32:
		return wholeNumber(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []string:
		return append([]string(nil), x...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func wholeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return int64(f)
	}
	return f
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// lookup follows a dotted path through nested maps.
func lookup(data map[string]any, field string) any {
	var cur any = data
	for _, key := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// assign sets a dotted path, creating intermediate maps. A non-map value in
// the way (e.g. an empty string for an absent row) is replaced.
func assign(data map[string]any, field string, value any) {
	keys := strings.Split(field, ".")
	cur := data
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

var funcs = map[string]any{
	"join":  join,
	"json":  toJSON,
	"money": money,
	"count": count,
	"fixed": fixed,
}

// join concatenates list elements with sep. A plain string is returned as-is.
func join(sep string, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, sep)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, sep)
	}
	return fmt.Sprint(v)
}

func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fixed formats a number with the given count of decimals.
func fixed(places int, v any) string {
	return strconv.FormatFloat(toFloat(v), 'f', places, 64)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

// money formats a number with thousands separators and no decimals.
func money(v any) string {
	s := strconv.FormatInt(int64(math.Round(toFloat(v))), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func count(v any) int {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 0
}
