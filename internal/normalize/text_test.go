package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"<p>Hello <b>world</b></p>", 100, "Hello world"},
		{"a &amp; b", 100, "a & b"},
		{"  lots\n\nof   space ", 100, "lots of space"},
		{"abcdefghij", 8, "abcde..."},
		{"héllo wörld", 5, "hé..."},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in, tt.n); got != tt.want {
			t.Errorf("Sanitize(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPostID(t *testing.T) {
	if got := PostID(domain.PlatformReddit, "abc", "x"); got != "reddit:abc" {
		t.Errorf("PostID() = %q", got)
	}
	a := PostID(domain.PlatformDevTo, "", "https://dev.to/a")
	b := PostID(domain.PlatformDevTo, "", "https://dev.to/a")
	if a == "" || a != b || !strings.HasPrefix(a, "devto:") {
		t.Errorf("PostID() hash = %q / %q, want stable devto: prefix", a, b)
	}
	if got := PostID(domain.PlatformDevTo, "", ""); got != "" {
		t.Errorf("PostID() without fallback = %q, want empty", got)
	}
}

func TestFinish(t *testing.T) {
	fetched := time.Date(2025, 5, 5, 5, 0, 0, 0, time.UTC)

	p, ok := Finish(domain.UnifiedPost{
		Platform: domain.PlatformTwitter,
		ID:       "123",
		Author:   "@gopher",
		Content:  "<i>hi</i>",
		URL:      " https://twitter.com/gopher/status/123 ",
		Likes:    -5,
	}, fetched)
	if !ok {
		t.Fatal("Finish() rejected a valid post")
	}
	if p.ID != "twitter:123" {
		t.Errorf("ID = %q, want twitter:123", p.ID)
	}
	if p.Author != "gopher" || p.Content != "hi" || p.Likes != 0 {
		t.Errorf("Finish() = %+v", p)
	}
	if !p.Estimated || !p.Timestamp.Equal(fetched) {
		t.Errorf("timestamp = %v estimated=%v, want fetch time", p.Timestamp, p.Estimated)
	}

	if _, ok := Finish(domain.UnifiedPost{Platform: domain.PlatformTwitter}, fetched); ok {
		t.Error("Finish() accepted an empty post")
	}
}
