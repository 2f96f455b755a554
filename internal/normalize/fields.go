package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

// Lookup walks a dotted path through nested maps and arrays, e.g.
// "user.screen_name" or "image_versions2.candidates.0.url".
func Lookup(raw map[string]any, path string) any {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil
			}
			cur = v
		case domain.RawRecord:
			v, ok := node[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

// PickString returns the first non-empty string found under keys. Numeric
// values are formatted so numeric ids survive.
func PickString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := Lookup(raw, k).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// PickInt returns the count stored under the first present key.
func PickInt(raw map[string]any, keys ...string) int {
	for _, k := range keys {
		if v := Lookup(raw, k); v != nil {
			return Engagement(v)
		}
	}
	return 0
}

// PickTime returns the first parseable instant under keys.
func PickTime(raw map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		switch v := Lookup(raw, k).(type) {
		case time.Time:
			if !v.IsZero() {
				return v.UTC(), true
			}
		case *time.Time:
			if v != nil && !v.IsZero() {
				return v.UTC(), true
			}
		case string:
			if t, err := ParseTime(v); err == nil {
				return t, true
			}
		case float64:
			if v > 0 {
				return fromEpoch(int64(v)), true
			}
		case int64:
			if v > 0 {
				return fromEpoch(v), true
			}
		case json.Number:
			if t, err := ParseTime(v.String()); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Timestamp resolves the post time, falling back to fetch time. The second
// return value reports whether the fallback was used.
func Timestamp(raw map[string]any, fetchedAt time.Time, keys ...string) (time.Time, bool) {
	if t, ok := PickTime(raw, keys...); ok {
		return t, false
	}
	return fetchedAt.UTC(), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RubyDate, // Twitter: Mon Jan 02 15:04:05 -0700 2006
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses timestamps in the layouts upstream sources use, plus
// epoch seconds and milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if len(s) >= 9 && digitsOnly(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil && n > 0 {
			return fromEpoch(n), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 1e8 {
		return fromEpoch(int64(f)), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

func fromEpoch(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
