// Package jsonval provides presence-aware accessors over decoded JSON values.
//
// Telemetry payloads are optional at every level: a field may be absent,
// present with the wrong type, or present and valid. Accessors return nil
// (not a zero value) for the first two cases so the distinction survives
// all the way into nullable store columns.
package jsonval

import (
	"encoding/json"
	"math"
	"sort"
)

// Str returns the value if it is a JSON string, else nil.
func Str(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// Int returns the value if it is a JSON number with an integral value, else nil.
func Int(v interface{}) *int64 {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int64(f)
	return &n
}

// Float returns the value if it is a JSON number, else nil.
func Float(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// Bool returns 1 or 0 if the value is a JSON boolean, else nil.
// Booleans are stored as 0/1 integer columns.
func Bool(v interface{}) *int64 {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	n := int64(0)
	if b {
		n = 1
	}
	return &n
}

// Obj returns the value if it is a JSON object, else nil.
func Obj(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// List returns the value if it is a JSON array, else nil.
func List(v interface{}) []interface{} {
	if xs, ok := v.([]interface{}); ok {
		return xs
	}
	return nil
}

// StrList returns the value if it is a JSON array whose elements are all
// strings, else nil.
func StrList(v interface{}) []string {
	xs, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		s, ok := x.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// MarshalStrList serializes a string list to compact JSON, or nil when the
// input is not an all-string list.
func MarshalStrList(v interface{}) *string {
	xs := StrList(v)
	if xs == nil {
		return nil
	}
	return marshalStrings(xs)
}

// MarshalSorted serializes a string slice sorted and deduplicated, so the
// stored form is order-independent.
func MarshalSorted(xs []string) *string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, s := range xs {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return marshalStrings(out)
}

// UnmarshalList parses a stored JSON column back into a list; anything that
// is not a JSON array decodes to an empty list.
func UnmarshalList(s *string) []interface{} {
	if s == nil || *s == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(*s), &v); err != nil {
		return nil
	}
	return List(v)
}

func marshalStrings(xs []string) *string {
	b, err := json.Marshal(xs)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
