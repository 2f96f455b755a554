package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	platform domain.Platform
	posts    []domain.UnifiedPost
	hang     bool
	panics   bool
	calls    atomic.Int32
}

func (f *fakeFetcher) Platform() domain.Platform { return f.platform }

func (f *fakeFetcher) Fetch(ctx context.Context, _ domain.Query, _ int) []domain.UnifiedPost {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.hang {
		<-ctx.Done()
		return []domain.UnifiedPost{{ID: "late", URL: "https://late.example/x"}}
	}
	out := make([]domain.UnifiedPost, len(f.posts))
	copy(out, f.posts)
	return out
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]domain.UnifiedPost
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]domain.UnifiedPost{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]domain.UnifiedPost, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.data[key]
	return p, ok
}

func (c *mapCache) Set(_ context.Context, key string, posts []domain.UnifiedPost, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = posts
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	return n.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func mustQuery(t *testing.T, text, platform string, limit, minEng int) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(text, platform, limit, minEng)
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}
	return q
}

// platformPosts builds n posts with distinct likes so scores never tie.
func platformPosts(p domain.Platform, n, likeBase int) []domain.UnifiedPost {
	out := make([]domain.UnifiedPost, n)
	for i := range n {
		out[i] = domain.UnifiedPost{
			ID:        fmt.Sprintf("%s:%d", p, i),
			Platform:  p,
			Author:    "author",
			Content:   fmt.Sprintf("%s post %d", p, i),
			URL:       fmt.Sprintf("https://%s.example/post/%d", p, i),
			Likes:     likeBase - i*4,
			Comments:  1,
			Timestamp: testNow.Add(-2 * time.Hour),
		}
	}
	return out
}

func newTestOrchestrator(fetchers []Fetcher, c Cache, opts Options) *Orchestrator {
	opts.Logger = quiet()
	opts.Now = func() time.Time { return testNow }
	return New(fetchers, c, opts)
}

func TestAggregateEndToEnd(t *testing.T) {
	twitter := platformPosts(domain.PlatformTwitter, 8, 1000)
	reddit := platformPosts(domain.PlatformReddit, 8, 999)
	devto := platformPosts(domain.PlatformDevTo, 8, 998)
	threads := platformPosts(domain.PlatformThreads, 8, 997)

	// Three cross-platform duplicates by URL.
	reddit[0].URL = "https://www." + twitter[1].URL[len("https://"):] + "?utm_source=x"
	devto[2].URL = twitter[3].URL
	threads[5].URL = reddit[6].URL

	o := newTestOrchestrator([]Fetcher{
		&fakeFetcher{platform: domain.PlatformTwitter, posts: twitter},
		&fakeFetcher{platform: domain.PlatformReddit, posts: reddit},
		&fakeFetcher{platform: domain.PlatformDevTo, posts: devto},
		&fakeFetcher{platform: domain.PlatformThreads, posts: threads},
	}, nil, Options{})

	res, err := o.Aggregate(context.Background(), mustQuery(t, "javascript", "all", 20, 0))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Posts) != 20 {
		t.Fatalf("got %d posts, want 20", len(res.Posts))
	}

	seen := map[string]bool{}
	for i, p := range res.Posts {
		if seen[p.URL] {
			t.Errorf("duplicate url %q", p.URL)
		}
		seen[p.URL] = true
		if i > 0 && !(res.Posts[i-1].Score > p.Score) {
			t.Errorf("scores not strictly descending at %d: %v then %v", i, res.Posts[i-1].Score, p.Score)
		}
	}

	if len(res.Sources) != 4 {
		t.Fatalf("got %d source reports", len(res.Sources))
	}
	for i, p := range domain.AllPlatforms() {
		if res.Sources[i].Platform != p || res.Sources[i].Count != 8 {
			t.Errorf("Sources[%d] = %+v", i, res.Sources[i])
		}
	}
	if !res.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v", res.GeneratedAt)
	}
}

func TestAggregateDedupKeepsFirstSeen(t *testing.T) {
	a := platformPosts(domain.PlatformTwitter, 1, 10)
	b := platformPosts(domain.PlatformReddit, 1, 500)
	b[0].URL = a[0].URL

	o := newTestOrchestrator([]Fetcher{
		&fakeFetcher{platform: domain.PlatformTwitter, posts: a},
		&fakeFetcher{platform: domain.PlatformReddit, posts: b},
	}, nil, Options{})

	res, _ := o.Aggregate(context.Background(), mustQuery(t, "go", "twitter,reddit", 10, 0))
	if len(res.Posts) != 1 || res.Posts[0].Platform != domain.PlatformTwitter {
		t.Errorf("Posts = %+v, want the twitter copy only", res.Posts)
	}
}

func TestAggregateCachesPerPlatform(t *testing.T) {
	f := &fakeFetcher{platform: domain.PlatformDevTo, posts: platformPosts(domain.PlatformDevTo, 3, 50)}
	o := newTestOrchestrator([]Fetcher{f}, newMapCache(), Options{})
	q := mustQuery(t, "rust", "devto", 10, 0)

	first, _ := o.Aggregate(context.Background(), q)
	second, _ := o.Aggregate(context.Background(), q)

	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	if first.Sources[0].Cached || !second.Sources[0].Cached {
		t.Errorf("cached flags = %v, %v", first.Sources[0].Cached, second.Sources[0].Cached)
	}
	if len(second.Posts) != 3 {
		t.Errorf("cached aggregation returned %d posts", len(second.Posts))
	}
}

func TestAggregateDoesNotCacheEmpty(t *testing.T) {
	f := &fakeFetcher{platform: domain.PlatformThreads}
	c := newMapCache()
	o := newTestOrchestrator([]Fetcher{f}, c, Options{})
	q := mustQuery(t, "rust", "threads", 10, 0)

	o.Aggregate(context.Background(), q)
	o.Aggregate(context.Background(), q)
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
}

func TestAggregateTimeoutIsolation(t *testing.T) {
	slow := &fakeFetcher{platform: domain.PlatformThreads, hang: true}
	fast := &fakeFetcher{platform: domain.PlatformReddit, posts: platformPosts(domain.PlatformReddit, 4, 40)}
	c := newMapCache()

	o := newTestOrchestrator([]Fetcher{slow, fast}, c, Options{
		Budgets: Budgets{domain.PlatformThreads: 50 * time.Millisecond, domain.PlatformReddit: time.Second},
	})

	start := time.Now()
	res, err := o.Aggregate(context.Background(), mustQuery(t, "ai", "all", 20, 0))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("aggregation took %v", elapsed)
	}
	if len(res.Posts) != 4 {
		t.Errorf("got %d posts, want only the reddit ones", len(res.Posts))
	}
	for _, p := range res.Posts {
		if p.Platform != domain.PlatformReddit {
			t.Errorf("unexpected post from %s", p.Platform)
		}
	}

	var threads SourceReport
	for _, s := range res.Sources {
		if s.Platform == domain.PlatformThreads {
			threads = s
		}
	}
	if !threads.TimedOut || threads.Count != 0 {
		t.Errorf("threads report = %+v", threads)
	}
	if len(c.data) != 1 {
		t.Errorf("cache holds %d entries, want only the reddit result", len(c.data))
	}
}

func TestAggregateBudgetsRunConcurrently(t *testing.T) {
	const budget = 100 * time.Millisecond
	var fetchers []Fetcher
	budgets := Budgets{}
	for _, p := range domain.AllPlatforms() {
		fetchers = append(fetchers, &fakeFetcher{platform: p, hang: true})
		budgets[p] = budget
	}
	o := newTestOrchestrator(fetchers, nil, Options{Budgets: budgets})

	start := time.Now()
	res, err := o.Aggregate(context.Background(), mustQuery(t, "ai", "all", 20, 0))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Sources) != len(fetchers) {
		t.Fatalf("got %d source reports, want %d", len(res.Sources), len(fetchers))
	}
	for _, s := range res.Sources {
		if !s.TimedOut {
			t.Errorf("%s report = %+v, want timed out", s.Platform, s)
		}
	}
	if elapsed < budget {
		t.Errorf("aggregation returned after %v, before the %v budget", elapsed, budget)
	}
	// Sequential budgets would take len(fetchers) * budget.
	if limit := 2 * budget; elapsed >= limit {
		t.Errorf("aggregation took %v for %d hanging platforms, want under %v", elapsed, len(fetchers), limit)
	}
}

func TestAggregateCallerCancelIsNotATimeout(t *testing.T) {
	slow := &fakeFetcher{platform: domain.PlatformThreads, hang: true}
	o := newTestOrchestrator([]Fetcher{slow}, newMapCache(), Options{
		Budgets: Budgets{domain.PlatformThreads: time.Minute},
	})
	timeouts := metrics.AdapterTimeouts.WithLabelValues(string(domain.PlatformThreads))
	before := testutil.ToFloat64(timeouts)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := o.Aggregate(ctx, mustQuery(t, "ai", "threads", 20, 0))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("got %d source reports", len(res.Sources))
	}
	if s := res.Sources[0]; !s.Aborted || s.TimedOut || s.Count != 0 {
		t.Errorf("threads report = %+v, want aborted and not timed out", s)
	}
	if got := testutil.ToFloat64(timeouts); got != before {
		t.Errorf("adapter timeout counter moved from %v to %v on a caller cancel", before, got)
	}
}

func TestAggregateSurvivesPanickingAdapter(t *testing.T) {
	o := newTestOrchestrator([]Fetcher{
		&fakeFetcher{platform: domain.PlatformTwitter, panics: true},
		&fakeFetcher{platform: domain.PlatformDevTo, posts: platformPosts(domain.PlatformDevTo, 2, 20)},
	}, nil, Options{})

	res, err := o.Aggregate(context.Background(), mustQuery(t, "go", "all", 20, 0))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(res.Posts) != 2 {
		t.Errorf("got %d posts, want 2", len(res.Posts))
	}
}

func TestAggregateMinEngagementAndLimit(t *testing.T) {
	posts := platformPosts(domain.PlatformReddit, 8, 40) // likes 40,36,...,12 plus one comment
	o := newTestOrchestrator([]Fetcher{&fakeFetcher{platform: domain.PlatformReddit, posts: posts}}, nil, Options{})

	res, _ := o.Aggregate(context.Background(), mustQuery(t, "go", "reddit", 3, 30))
	if len(res.Posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(res.Posts))
	}
	for _, p := range res.Posts {
		if p.Engagement() < 30 {
			t.Errorf("post %s below threshold: %d", p.ID, p.Engagement())
		}
	}
	if res.Posts[0].ID != "reddit:0" {
		t.Errorf("top post = %s", res.Posts[0].ID)
	}
}

func TestAggregateEmptyResultIsNotAnError(t *testing.T) {
	o := newTestOrchestrator([]Fetcher{&fakeFetcher{platform: domain.PlatformTwitter}}, nil, Options{})
	res, err := o.Aggregate(context.Background(), mustQuery(t, "nothing", "twitter", 5, 0))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if res.Posts == nil || len(res.Posts) != 0 {
		t.Errorf("Posts = %#v, want empty non-nil", res.Posts)
	}
}

func TestAggregateRejectsInvalidQuery(t *testing.T) {
	o := newTestOrchestrator(nil, nil, Options{})
	_, err := o.Aggregate(context.Background(), domain.Query{})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("Aggregate(zero query) error = %v, want ErrInvalidQuery", err)
	}
}

func TestAggregateNotifies(t *testing.T) {
	n := &recordingNotifier{err: errors.New("nats down")}
	o := newTestOrchestrator([]Fetcher{
		&fakeFetcher{platform: domain.PlatformDevTo, posts: platformPosts(domain.PlatformDevTo, 2, 20)},
	}, nil, Options{Notifier: n})

	if _, err := o.Aggregate(context.Background(), mustQuery(t, "go", "devto", 5, 0)); err != nil {
		t.Fatalf("notifier failure surfaced: %v", err)
	}
	if len(n.results) != 1 || len(n.results[0].Posts) != 2 {
		t.Errorf("notifier saw %+v", n.results)
	}
}

func TestPlatformsFixedOrder(t *testing.T) {
	o := newTestOrchestrator([]Fetcher{
		&fakeFetcher{platform: domain.PlatformThreads},
		&fakeFetcher{platform: domain.PlatformTwitter},
	}, nil, Options{})
	got := o.Platforms()
	if len(got) != 2 || got[0] != domain.PlatformTwitter || got[1] != domain.PlatformThreads {
		t.Errorf("Platforms() = %v", got)
	}
}
