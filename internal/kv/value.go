package kv

import (
	"encoding/json"
	"reflect"
)

// Engines hand back attribute values in their own native shapes (JSON numbers
// decode to float64, sets decode to []string or []any). The helpers below
// normalize those shapes so comparisons and decoding behave the same on every
// engine.

// Int64 converts a stored numeric attribute to int64
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	}
	return 0, false
}

func float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := Int64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// String returns a stored string attribute, or "" when absent or not a string
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Bool returns a stored boolean attribute, false when absent
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Strings returns a stored string list or set
func Strings(v any) []string {
	switch l := v.(type) {
	case []string:
		out := make([]string, len(l))
		copy(out, l)
		return out
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Maps returns a stored list of maps
func Maps(v any) []map[string]any {
	switch l := v.(type) {
	case []map[string]any:
		return l
	case []any:
		out := make([]map[string]any, 0, len(l))
		for _, e := range l {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Equal compares two attribute values across engine representations
func Equal(a, b any) bool {
	if fa, ok := float(a); ok {
		fb, ok := float(b)
		return ok && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	if la := Strings(a); la != nil {
		lb := Strings(b)
		return lb != nil && reflect.DeepEqual(la, lb)
	}
	return reflect.DeepEqual(a, b)
}

// Less orders two strings or two numbers; mixed types never compare
func Less(a, b any) bool {
	if fa, ok := float(a); ok {
		fb, ok := float(b)
		return ok && fa < fb
	}
	sa, ok := a.(string)
	if !ok {
		return false
	}
	sb, ok := b.(string)
	return ok && sa < sb
}

// Clone deep-copies an item so callers never share nested lists or maps with a store
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e).(map[string]any)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	}
	return v
}
