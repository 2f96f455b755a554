// Package dedup collapses posts that refer to the same item, keeping the
// first occurrence in merge order.
package dedup

import (
	"net/url"
	"sort"
	"strings"

	"github.com/qepting91/viralscout/internal/domain"
)

// FingerprintRunes is the content prefix length used when a post has no
// usable URL.
const FingerprintRunes = 120

// trackingParams are dropped from URLs before comparison.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"igshid":   true,
	"si":       true,
	"ref":      true,
	"ref_src":  true,
	"ref_url":  true,
	"s":        true,
	"t":        true,
	"mc_cid":   true,
	"mc_eid":   true,
	"share_id": true,
	"context":  true,
}

// Key returns the canonical identity of a post: its normalized URL when the
// URL identifies the item, otherwise a content fingerprint.
func Key(p domain.UnifiedPost) string {
	if u := NormalizeURL(p.URL); u != "" {
		return u
	}
	text := p.Content
	if strings.TrimSpace(text) == "" {
		text = p.Title
	}
	return "fp:" + Fingerprint(text)
}

// NormalizeURL lower-cases the URL, drops tracking parameters, fragments,
// "www." and trailing slashes, and sorts what is left of the query. Generic
// URLs (no host, or a bare site root) normalize to "".
func NormalizeURL(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	host := strings.TrimPrefix(u.Host, "www.")
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		return ""
	}

	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		if strings.HasPrefix(k, "utm_") || trackingParams[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(host)
	b.WriteString(path)
	for i, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for j, v := range vals {
			if i == 0 && j == 0 {
				b.WriteByte('?')
			} else {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Fingerprint is the trimmed, lower-cased, whitespace-collapsed prefix of s.
func Fingerprint(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	r := []rune(s)
	if len(r) > FingerprintRunes {
		r = r[:FingerprintRunes]
	}
	return string(r)
}

// Deduplicate drops every post whose key, or id, was already seen. Input
// order decides the winner and is preserved.
func Deduplicate(posts []domain.UnifiedPost) []domain.UnifiedPost {
	seenKey := make(map[string]bool, len(posts))
	seenID := make(map[string]bool, len(posts))
	out := make([]domain.UnifiedPost, 0, len(posts))
	for _, p := range posts {
		k := Key(p)
		if seenKey[k] || (p.ID != "" && seenID[p.ID]) {
			continue
		}
		seenKey[k] = true
		if p.ID != "" {
			seenID[p.ID] = true
		}
		out = append(out, p)
	}
	return out
}
