package normalize

import (
	"crypto/sha256"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

const (
	MaxContentRunes = 500
	MaxTitleRunes   = 300
)

// Sanitize strips markup, decodes entities, collapses whitespace and
// truncates to n runes.
func Sanitize(s string, n int) string {
	s = html.UnescapeString(stripHTML(s))
	return truncate(strings.Join(strings.Fields(s), " "), n)
}

// PostID builds a platform-prefixed identifier. Without a native id the
// fallback (usually the URL) is hashed instead.
func PostID(p domain.Platform, nativeID, fallback string) string {
	if nativeID = strings.TrimSpace(nativeID); nativeID != "" {
		return string(p) + ":" + nativeID
	}
	if fallback == "" {
		return ""
	}
	h := sha256.Sum256([]byte(fallback))
	return fmt.Sprintf("%s:%x", p, h[:8])
}

// Finish applies the invariants every normalized post must satisfy. It
// returns false when the record carries neither a URL nor any text.
func Finish(p domain.UnifiedPost, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	p.Title = Sanitize(p.Title, MaxTitleRunes)
	p.Content = Sanitize(p.Content, MaxContentRunes)
	p.URL = strings.TrimSpace(p.URL)
	p.Author = strings.TrimPrefix(strings.TrimSpace(p.Author), "@")
	if p.Content == "" {
		p.Content = p.Title
	}
	if p.URL == "" && p.Content == "" {
		return domain.UnifiedPost{}, false
	}

	if !strings.HasPrefix(p.ID, string(p.Platform)+":") {
		fallback := p.URL
		if fallback == "" {
			fallback = p.Content
		}
		p.ID = PostID(p.Platform, p.ID, fallback)
	}

	p.Likes = max(p.Likes, 0)
	p.Comments = max(p.Comments, 0)
	p.Reposts = max(p.Reposts, 0)
	p.Views = max(p.Views, 0)

	if p.Timestamp.IsZero() {
		p.Timestamp = fetchedAt.UTC()
		p.Estimated = true
	}
	p.Score = 0
	return p, true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
