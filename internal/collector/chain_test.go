package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
)

type fakeStrategy struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context) ([]domain.RawRecord, error)
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(ctx context.Context, _ domain.Query, _ int) ([]domain.RawRecord, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

func rawPosts(prefix string, n int) []domain.RawRecord {
	out := make([]domain.RawRecord, n)
	for i := range out {
		out[i] = domain.RawRecord{
			"id":    fmt.Sprintf("%s%d", prefix, i),
			"text":  fmt.Sprintf("post %s %d", prefix, i),
			"url":   fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			"likes": "1.2K",
		}
	}
	return out
}

func testNormalizer(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	return normalize.Finish(domain.UnifiedPost{
		Platform: domain.PlatformReddit,
		ID:       normalize.PickString(raw, "id"),
		Content:  normalize.PickString(raw, "text"),
		URL:      normalize.PickString(raw, "url"),
		Likes:    normalize.PickInt(raw, "likes"),
	}, fetchedAt)
}

func step(s Strategy) Step { return Step{Strategy: s, Normalize: testNormalizer} }

func mustQuery(t *testing.T) domain.Query {
	t.Helper()
	q, err := domain.NewQuery("golang", "all", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	failing := &fakeStrategy{name: "blocked", fn: func(context.Context) ([]domain.RawRecord, error) {
		return nil, fmt.Errorf("%w: status 429", domain.ErrBlocked)
	}}
	empty := &fakeStrategy{name: "empty", fn: func(context.Context) ([]domain.RawRecord, error) {
		return nil, nil
	}}
	junk := &fakeStrategy{name: "junk", fn: func(context.Context) ([]domain.RawRecord, error) {
		return []domain.RawRecord{{"nothing": "useful"}}, nil
	}}
	good := &fakeStrategy{name: "good", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("g", 3), nil
	}}
	never := &fakeStrategy{name: "never", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("n", 3), nil
	}}

	chain := NewChain(domain.PlatformReddit, nil, step(failing), step(empty), step(junk), step(good), step(never))
	posts, winner := chain.Run(context.Background(), mustQuery(t), 10)

	if winner != "good" {
		t.Errorf("winner = %q, want good", winner)
	}
	if len(posts) != 3 {
		t.Fatalf("len(posts) = %d, want 3", len(posts))
	}
	if posts[0].ID != "reddit:g0" || posts[0].Likes != 1200 || posts[0].Strategy != "good" {
		t.Errorf("posts[0] = %+v", posts[0])
	}
	if never.calls.Load() != 0 {
		t.Error("strategy after the winner was invoked")
	}
}

func TestChainRecoversPanics(t *testing.T) {
	panicky := &fakeStrategy{name: "panicky", fn: func(context.Context) ([]domain.RawRecord, error) {
		panic("boom")
	}}
	good := &fakeStrategy{name: "good", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("g", 1), nil
	}}

	posts, winner := NewChain(domain.PlatformReddit, nil, step(panicky), step(good)).Run(context.Background(), mustQuery(t), 10)
	if winner != "good" || len(posts) != 1 {
		t.Errorf("Run() = %d posts from %q, want 1 from good", len(posts), winner)
	}
}

func TestChainNormalizerPanicDropsRecord(t *testing.T) {
	s := &fakeStrategy{name: "s", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("a", 2), nil
	}}
	calls := 0
	bad := func(raw domain.RawRecord, at time.Time) (domain.UnifiedPost, bool) {
		calls++
		if calls == 1 {
			panic("bad record")
		}
		return testNormalizer(raw, at)
	}

	posts, _ := NewChain(domain.PlatformReddit, nil, Step{Strategy: s, Normalize: bad}).Run(context.Background(), mustQuery(t), 10)
	if len(posts) != 1 {
		t.Errorf("len(posts) = %d, want 1", len(posts))
	}
}

func TestChainRespectsLimit(t *testing.T) {
	s := &fakeStrategy{name: "s", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("a", 8), nil
	}}
	posts, _ := NewChain(domain.PlatformReddit, nil, step(s)).Run(context.Background(), mustQuery(t), 5)
	if len(posts) != 5 {
		t.Errorf("len(posts) = %d, want 5", len(posts))
	}
}

func TestChainExhausted(t *testing.T) {
	s := &fakeStrategy{name: "s", fn: func(context.Context) ([]domain.RawRecord, error) {
		return nil, errors.New("network down")
	}}
	posts, winner := NewChain(domain.PlatformReddit, nil, step(s)).Run(context.Background(), mustQuery(t), 5)
	if posts == nil || len(posts) != 0 || winner != "" {
		t.Errorf("Run() = %v, %q; want empty non-nil slice and no winner", posts, winner)
	}
}

func TestChainStopsWhenContextDone(t *testing.T) {
	s := &fakeStrategy{name: "s", fn: func(context.Context) ([]domain.RawRecord, error) {
		return rawPosts("a", 1), nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewChain(domain.PlatformReddit, nil, step(s)).Run(ctx, mustQuery(t), 5)
	if s.calls.Load() != 0 {
		t.Error("strategy invoked after cancellation")
	}
}
