// Package config loads h1exec settings from an optional JSON or YAML file
// and command-line flags, flags taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// File settings arrive as whatever the JSON or YAML decoder produced. The
// helpers below coerce them with cast, with two local rules: blank strings
// read as the zero value, and bare numbers in duration fields are seconds.

// lookupSetting returns the first candidate key present in settings, trying
// each key as written and lowercased.
func lookupSetting(settings map[string]any, candidates ...string) (any, bool) {
	for _, key := range candidates {
		for _, k := range []string{key, strings.ToLower(key)} {
			if val, ok := settings[k]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

func blank(value any) bool {
	s, ok := value.(string)
	return value == nil || ok && strings.TrimSpace(s) == ""
}

func trimmed(value any) any {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func asString(value any) (string, error) {
	if s, err := cast.ToStringE(value); err == nil {
		return s, nil
	}
	return fmt.Sprint(value), nil
}

func asInt(value any) (int, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToIntE(trimmed(value))
}

func asFloat64(value any) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value any) (bool, error) {
	if blank(value) {
		return false, nil
	}
	return cast.ToBoolE(trimmed(value))
}

// asDuration accepts Go duration strings such as "250ms" and numbers of
// seconds, fractional or not.
func asDuration(value any) (time.Duration, error) {
	if blank(value) {
		return 0, nil
	}
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(v))
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration type %T", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// asStringMap reads a header or trailer block. Field names must not be
// blank.
func asStringMap(value any) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	fields, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, fmt.Errorf("unsupported field map type %T", value)
	}
	for name := range fields {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("field name cannot be empty")
		}
	}
	return fields, nil
}

func toInterfaceSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return anySlice(v), nil
	case []map[any]any:
		return anySlice(v), nil
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	return items, nil
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

// toStringKeyMap reads a nested block with its keys trimmed and lowercased.
func toStringKeyMap(value any) (map[string]any, error) {
	if _, isString := value.(string); isString {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	raw, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	result := make(map[string]any, len(raw))
	for key, val := range raw {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}
