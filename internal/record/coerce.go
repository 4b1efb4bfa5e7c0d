package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts tried in order when coercing date-like values. POS
// exports are wildly inconsistent here; anything unparsable becomes the zero
// time rather than an error.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// AsFloat coerces a scalar to float64. Unparsable or missing values yield 0
// (the canonical default for qty/total per the schema contract).
func AsFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// AsTime coerces a scalar to a timestamp. Returns the zero time and false
// when the value cannot be parsed; callers treat that as null, never as an
// error.
func AsTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case float64:
		// Epoch seconds are the only numeric timestamp form seen in the wild.
		if val <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(val), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// AsString renders a scalar for identity comparisons (SKU, store, customer
// IDs). Numbers keep their shortest representation so "42" and 42 collide.
func AsString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AsBool reports whether the value, rendered as a string, case-folded and
// trimmed, is a member of the exact set {"1", "true", "t", "yes"}. This is
// set membership, not general truthy coercion: "y", "on" and non-zero
// numbers other than 1 are all false.
func AsBool(v any) bool {
	switch strings.ToLower(AsString(v)) {
	case "1", "true", "t", "yes":
		return true
	default:
		return false
	}
}
