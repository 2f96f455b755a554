package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qepting91/viralscout/internal/domain"
)

func TestReadWatchlist(t *testing.T) {
	input := "\uFEFFquery,platform,limit,min_engagement\n" +
		"javascript,all,20,10\n" +
		"rust\n" +
		"  golang , reddit,5\n" +
		"# commented,all,1,1\n" +
		",all,10,0\n" +
		"ai,myspace,10,0\n" +
		"llm,devto,abc,0\n" +
		"llm,devto,500,0\n" +
		"JavaScript,all,20,10\n" +
		"\"machine learning, applied\",twitter,15,-1\n" +
		"threads only,threads,15,3\n"

	got, err := ReadWatchlist(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadWatchlist() error = %v", err)
	}

	want := []struct {
		text     string
		platform string
		limit    int
		minEng   int
	}{
		{"javascript", "all", 20, 10},
		{"rust", "all", domain.DefaultLimit, 0},
		{"golang", "reddit", 5, 0},
		{"threads only", "threads", 15, 3},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d queries %+v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		q := got[i]
		if q.Text != w.text || q.Platform != w.platform || q.Limit != w.limit || q.MinEngagement != w.minEng {
			t.Errorf("row %d = %+v, want %+v", i, q, w)
		}
	}
}

func TestLoadWatchlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.csv")
	if err := os.WriteFile(path, []byte("query\nkubernetes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWatchlist(path)
	if err != nil || len(got) != 1 || got[0].Text != "kubernetes" {
		t.Errorf("LoadWatchlist() = %+v, %v", got, err)
	}

	if _, err := LoadWatchlist(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("LoadWatchlist(missing) returned no error")
	}
}
