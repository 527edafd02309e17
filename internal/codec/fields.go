package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/mealsync/internal/types"
)

// stringField returns the first of keys present as a string. Integral
// numbers are accepted and formatted, since some old ids were numeric.
func stringField(rec map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			return v, true
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatFloat(v, 'f', -1, 64), true
			}
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

// numberField returns the first of keys present as a number. Numeric strings
// are accepted.
func numberField(rec map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// boolField reads key as a boolean. "true"/"false" strings and 0/1 numbers
// are accepted; a missing or unreadable value yields def.
func boolField(rec map[string]any, key string, def bool) bool {
	switch v := rec[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return def
}

// timeField parses the first of keys present as a timestamp: RFC 3339 text,
// a bare date, or Unix milliseconds.
func timeField(rec map[string]any, keys ...string) (time.Time, error) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", k, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("missing timestamp (%s)", strings.Join(keys, ", "))
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), nil
		}
		if ts, err := time.Parse(types.DateLayout, s); err == nil {
			return ts, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}
