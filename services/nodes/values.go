package nodes

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Stringify renders a resolved value in its string form: strings as-is,
// numbers in shortest decimal form, null as "null", sequences and mappings
// as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TypeName names the shape of a resolved value for diagnostics.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any, []string:
		return "sequence"
	case map[string]any:
		return "mapping"
	default:
		return "unknown"
	}
}

// toNumber coerces numbers, numeric strings and booleans to float64.
// An empty or blank string is 0.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val)
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// asSequence returns v as a slice when it is one.
func asSequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// stringList coerces v to a list of strings: a sequence maps each element
// to its string form, null is empty, anything else is a single entry.
func stringList(v any) []string {
	if v == nil {
		return nil
	}
	if seq, ok := asSequence(v); ok {
		out := make([]string, len(seq))
		for i, item := range seq {
			out[i] = Stringify(item)
		}
		return out
	}
	return []string{Stringify(v)}
}

// joinText flattens a sequence into one string with sep. Non-sequences are
// returned in string form; the boolean reports whether v was set at all.
func joinText(v any, sep string) (string, bool) {
	if v == nil {
		return "", false
	}
	if seq, ok := asSequence(v); ok {
		return strings.Join(stringList(seq), sep), true
	}
	return Stringify(v), true
}
