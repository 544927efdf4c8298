// Package extractor pulls named values out of JSON response bodies.
package extractor

import (
	"sort"

	"github.com/torosent/h1exec/internal/config"
)

// Logger interface for warning output.
type Logger interface {
	Warn(format string, args ...interface{})
}

// Extractor names a value located by a JSON path.
type Extractor struct {
	// Name is the key the extracted value is stored under.
	Name string

	// JSONPath is a path expression ("$.json.id", "headers.Content-Type").
	JSONPath string
}

// FromConfig converts configured extractors.
func FromConfig(entries []config.Extractor) []Extractor {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Extractor, 0, len(entries))
	for _, e := range entries {
		out = append(out, Extractor{Name: e.Name, JSONPath: e.JSONPath})
	}
	return out
}

// ExtractAll applies all extractors to body. A path that does not resolve
// yields an empty value and a warning; processing continues.
// The logger parameter can be nil to suppress warnings.
func ExtractAll(body []byte, extractors []Extractor, logger Logger) map[string]string {
	result := make(map[string]string, len(extractors))
	for _, ex := range extractors {
		value, ok := JSONPath(body, ex.JSONPath)
		if !ok && logger != nil {
			logger.Warn("JSONPath not found for %s: %s", ex.Name, ex.JSONPath)
		}
		result[ex.Name] = value
	}
	return result
}

// Names returns the keys of values in sorted order.
func Names(values map[string]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
