package domain

import (
	"fmt"
	"strings"
)

// Platform identifies one of the supported content sources
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformReddit  Platform = "reddit"
	PlatformDevTo   Platform = "devto"
	PlatformThreads Platform = "threads"
)

// FilterAll selects every platform.
const FilterAll = "all"

// AllPlatforms returns the platforms in their fixed iteration order.
func AllPlatforms() []Platform {
	return []Platform{PlatformTwitter, PlatformReddit, PlatformDevTo, PlatformThreads}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformReddit, PlatformDevTo, PlatformThreads:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

// ParsePlatformFilter expands a filter value into target platforms. Empty and
// "all" select everything; otherwise a comma-separated list is accepted.
func ParsePlatformFilter(filter string) ([]Platform, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" || filter == FilterAll {
		return AllPlatforms(), nil
	}

	var out []Platform
	seen := make(map[Platform]bool)
	for _, part := range strings.Split(filter, ",") {
		p := Platform(strings.TrimSpace(part))
		if p == "x" {
			p = PlatformTwitter
		}
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidQuery, part)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	// Keep the fixed order regardless of how the filter was written.
	ordered := make([]Platform, 0, len(out))
	for _, p := range AllPlatforms() {
		if seen[p] {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
