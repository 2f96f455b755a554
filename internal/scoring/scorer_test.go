package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedScorer() *Scorer {
	return NewScorer(DefaultWeights()).WithClock(func() time.Time { return now })
}

func TestScoreFormula(t *testing.T) {
	s := fixedScorer()
	p := domain.UnifiedPost{Likes: 100, Comments: 10, Reposts: 5, Timestamp: now.Add(-4 * time.Hour)}

	want := (100 + 10*2.0 + 5*3.0) / math.Pow(4, 0.8)
	if got := s.Score(p); math.Abs(got-want) > 1e-9 {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestScoreFreshAndFuturePostsUseAgeOne(t *testing.T) {
	s := fixedScorer()
	for _, ts := range []time.Time{now, now.Add(-30 * time.Minute), now.Add(2 * time.Hour), {}} {
		p := domain.UnifiedPost{Likes: 50, Timestamp: ts}
		if got := s.Score(p); got != 50 {
			t.Errorf("Score(ts=%v) = %v, want 50", ts, got)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	s := fixedScorer()
	base := domain.UnifiedPost{Likes: 10, Comments: 3, Reposts: 1, Timestamp: now.Add(-10 * time.Hour)}

	more := base
	more.Likes++
	if s.Score(more) <= s.Score(base) {
		t.Error("score must increase strictly with likes")
	}

	older := base
	older.Timestamp = base.Timestamp.Add(-5 * time.Hour)
	if s.Score(older) >= s.Score(base) {
		t.Error("score must decrease as posts age")
	}

	for _, d := range []time.Duration{0, time.Hour, 24 * time.Hour, 240 * time.Hour} {
		p := base
		p.Timestamp = now.Add(-d)
		q := p
		q.Comments++
		if s.Score(q) < s.Score(p) {
			t.Errorf("score decreased with more comments at age %v", d)
		}
	}
}

func TestRank(t *testing.T) {
	posts := []domain.UnifiedPost{
		{ID: "b", Score: 5, Timestamp: now.Add(-time.Hour)},
		{ID: "a", Score: 5, Timestamp: now.Add(-time.Hour)},
		{ID: "c", Score: 5, Timestamp: now},
		{ID: "d", Score: 9, Timestamp: now.Add(-48 * time.Hour)},
		{ID: "e", Score: 1, Timestamp: now},
	}
	Rank(posts)

	want := []string{"d", "c", "a", "b", "e"}
	for i, id := range want {
		if posts[i].ID != id {
			t.Errorf("posts[%d] = %s, want %s", i, posts[i].ID, id)
		}
	}
}

func TestApply(t *testing.T) {
	posts := []domain.UnifiedPost{
		{ID: "x", Likes: 10, Timestamp: now},
		{ID: "y", Likes: 10, Reposts: 10, Timestamp: now},
	}
	fixedScorer().Apply(posts)
	if posts[0].Score != 10 || posts[1].Score != 40 {
		t.Errorf("Apply() scores = %v, %v", posts[0].Score, posts[1].Score)
	}
}
