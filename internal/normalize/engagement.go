package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var suffixMultipliers = map[byte]int64{
	'k': 1_000,
	'm': 1_000_000,
	'b': 1_000_000_000,
}

// ParseEngagement converts display counts such as "1.2K", "5M" or "42" into
// integers. Suffixes are case-insensitive, at most one decimal point is
// accepted and fractional remainders are truncated toward zero. Anything
// unparseable, empty, negative or out of range yields 0.
func ParseEngagement(s string) int {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "_", "", " ", "").Replace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" || strings.HasPrefix(s, "-") {
		return 0
	}

	mult := int64(1)
	if m, ok := suffixMultipliers[lower(s[len(s)-1])]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	if strings.Count(s, ".") > 1 {
		return 0
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0
	}

	var n int64
	if whole != "" {
		w, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || w > math.MaxInt64/mult {
			return 0
		}
		n = w * mult
	}

	if frac != "" && mult > 1 {
		// Digits past the ninth can never contribute a whole unit.
		if len(frac) > 9 {
			frac = frac[:9]
		}
		f, _ := strconv.ParseInt(frac, 10, 64)
		part := f * mult / pow10(len(frac))
		if n > math.MaxInt64-part {
			return 0
		}
		n += part
	}

	return int(n)
}

// Engagement coerces a decoded JSON value into a non-negative count.
func Engagement(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		if n <= 0 || math.IsNaN(n) {
			return 0
		}
		if n >= math.MaxInt64 {
			return math.MaxInt
		}
		return int(n)
	case float32:
		return Engagement(float64(n))
	case int:
		return max(n, 0)
	case int64:
		return max(int(n), 0)
	case json.Number:
		return ParseEngagement(n.String())
	case string:
		return ParseEngagement(n)
	default:
		return 0
	}
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func pow10(n int) int64 {
	p := int64(1)
	for range n {
		p *= 10
	}
	return p
}
