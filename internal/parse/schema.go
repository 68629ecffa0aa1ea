package parse

import (
	"fmt"
	"strings"
)

// Schema lists the key paths a JSON response must contain. A path is a
// dot-separated list of object keys; a key suffixed with "[]" must be an
// array and the rest of the path is checked on every element, e.g.
// "variants[].headline".
type Schema struct {
	Required []string `yaml:"required" json:"required"`
}

// Missing returns the concrete paths from the schema that are absent or null
// in v, in schema order.
func (s Schema) Missing(v any) []string {
	var missing []string
	for _, path := range s.Required {
		missing = append(missing, missingPath(v, strings.Split(path, "."), "")...)
	}
	return missing
}

func missingPath(v any, parts []string, prefix string) []string {
	if len(parts) == 0 {
		return nil
	}

	key := parts[0]
	isArray := strings.HasSuffix(key, "[]")
	key = strings.TrimSuffix(key, "[]")

	here := key
	if prefix != "" {
		here = prefix + "." + key
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return []string{here}
	}
	child, ok := obj[key]
	if !ok || child == nil {
		return []string{here}
	}

	if !isArray {
		return missingPath(child, parts[1:], here)
	}

	items, ok := child.([]any)
	if !ok {
		return []string{here + "[]"}
	}
	var missing []string
	for i, item := range items {
		missing = append(missing, missingPath(item, parts[1:], fmt.Sprintf("%s[%d]", here, i))...)
	}
	return missing
}
