package dedup

import (
	"testing"

	"github.com/qepting91/viralscout/internal/domain"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Reddit.com/r/golang/comments/abc/", "https://reddit.com/r/golang/comments/abc"},
		{"http://dev.to/ann/post?utm_source=x&utm_medium=y", "https://dev.to/ann/post"},
		{"https://twitter.com/a/status/1?s=20&t=abc", "https://twitter.com/a/status/1"},
		{"https://example.com/p?b=2&a=1&fbclid=zz#frag", "https://example.com/p?a=1&b=2"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
		{"/relative/path", ""},
		{"mailto:someone@example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint("  Hello \n\t WORLD  "); got != "hello world" {
		t.Errorf("Fingerprint() = %q", got)
	}
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'é'
	}
	if got := []rune(Fingerprint(string(long))); len(got) != FingerprintRunes {
		t.Errorf("len(Fingerprint(long)) = %d, want %d", len(got), FingerprintRunes)
	}
}

func TestDeduplicateFirstSeenWins(t *testing.T) {
	posts := []domain.UnifiedPost{
		{ID: "reddit:1", Platform: domain.PlatformReddit, URL: "https://go.dev/blog/post", Likes: 1},
		{ID: "twitter:9", Platform: domain.PlatformTwitter, URL: "https://www.go.dev/blog/post/?utm_source=tw", Likes: 999},
		{ID: "devto:1", Platform: domain.PlatformDevTo, URL: "https://example.com/", Content: "Same   text"},
		{ID: "threads:1", Platform: domain.PlatformThreads, Content: "same text"},
		{ID: "threads:2", Platform: domain.PlatformThreads, Content: "different"},
		{ID: "threads:2", Platform: domain.PlatformThreads, URL: "https://threads.net/x/post/2", Content: "dup id"},
	}

	got := Deduplicate(posts)
	wantIDs := []string{"reddit:1", "devto:1", "threads:2"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Deduplicate() kept %d posts, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Likes != 1 {
		t.Error("duplicate must not be merged into the first-seen post")
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if got := Deduplicate(nil); got == nil || len(got) != 0 {
		t.Errorf("Deduplicate(nil) = %v, want empty slice", got)
	}
}
