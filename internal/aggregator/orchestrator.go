// Package aggregator fans a query out to every platform adapter, bounds each
// one by a time budget and merges the results into a single ranked list.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qepting91/viralscout/internal/cache"
	"github.com/qepting91/viralscout/internal/config"
	"github.com/qepting91/viralscout/internal/dedup"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
	"github.com/qepting91/viralscout/internal/scoring"
)

// DefaultBudget applies to platforms without a configured budget.
const DefaultBudget = 15 * time.Second

// Fetcher is a platform adapter. Fetch must not fail: an unreachable
// platform yields an empty slice.
type Fetcher interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, q domain.Query, limit int) []domain.UnifiedPost
}

// Cache stores per-platform results between aggregations.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.UnifiedPost, bool)
	Set(ctx context.Context, key string, posts []domain.UnifiedPost, ttl time.Duration)
}

// Notifier is told about every completed aggregation.
type Notifier interface {
	Notify(ctx context.Context, r Result) error
}

// SourceReport describes how one platform contributed to a result.
type SourceReport struct {
	Platform domain.Platform `json:"platform"`
	Count    int             `json:"count"`
	Cached   bool            `json:"cached"`
	TimedOut bool            `json:"timedOut"`
	Aborted  bool            `json:"aborted,omitempty"` // caller cancelled before the fetch finished
	Duration time.Duration   `json:"durationNs"`
}

type Result struct {
	Query       domain.Query         `json:"query"`
	Posts       []domain.UnifiedPost `json:"posts"`
	Sources     []SourceReport       `json:"sources"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

type Budgets map[domain.Platform]time.Duration

// BudgetsFromConfig maps the configured per-platform budgets.
func BudgetsFromConfig(cfg config.AggregatorConfig) Budgets {
	return Budgets{
		domain.PlatformTwitter: cfg.TwitterBudget,
		domain.PlatformReddit:  cfg.RedditBudget,
		domain.PlatformDevTo:   cfg.DevToBudget,
		domain.PlatformThreads: cfg.ThreadsBudget,
	}
}

func (b Budgets) of(p domain.Platform) time.Duration {
	if d, ok := b[p]; ok && d > 0 {
		return d
	}
	return DefaultBudget
}

type Options struct {
	Budgets  Budgets
	Weights  scoring.Weights
	CacheTTL time.Duration // zero uses the cache's own default
	Notifier Notifier      // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

type Orchestrator struct {
	fetchers map[domain.Platform]Fetcher
	cache    Cache
	opts     Options
	scorer   *scoring.Scorer
	logger   *slog.Logger
}

// New builds an orchestrator. c may be nil to disable caching.
func New(fetchers []Fetcher, c Cache, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Weights == (scoring.Weights{}) {
		opts.Weights = scoring.DefaultWeights()
	}
	byPlatform := make(map[domain.Platform]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byPlatform[f.Platform()] = f
	}
	return &Orchestrator{
		fetchers: byPlatform,
		cache:    c,
		opts:     opts,
		scorer:   scoring.NewScorer(opts.Weights).WithClock(opts.Now),
		logger:   opts.Logger,
	}
}

// Platforms lists the platforms an adapter is registered for, in fixed order.
func (o *Orchestrator) Platforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms() {
		if _, ok := o.fetchers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Aggregate runs q against every targeted platform. The only error it
// returns wraps domain.ErrInvalidQuery.
func (o *Orchestrator) Aggregate(ctx context.Context, q domain.Query) (Result, error) {
	if q.Text == "" || q.Limit < 1 || q.Limit > domain.MaxLimit || q.MinEngagement < 0 {
		return Result{}, fmt.Errorf("%w: query must be built with domain.NewQuery", domain.ErrInvalidQuery)
	}
	platforms := q.Platforms()
	if len(platforms) == 0 {
		return Result{}, fmt.Errorf("%w: no platforms selected", domain.ErrInvalidQuery)
	}

	start := time.Now()
	lists := make([][]domain.UnifiedPost, len(platforms))
	reports := make([]SourceReport, len(platforms))

	var wg sync.WaitGroup
	for i, p := range platforms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lists[i], reports[i] = o.collect(ctx, p, q)
		}()
	}
	wg.Wait()

	var merged []domain.UnifiedPost
	for _, l := range lists {
		merged = append(merged, l...)
	}

	posts := make([]domain.UnifiedPost, 0, len(merged))
	for _, p := range merged {
		if p.Engagement() >= q.MinEngagement {
			posts = append(posts, p)
		}
	}
	posts = dedup.Deduplicate(posts)
	o.scorer.Apply(posts)
	scoring.Rank(posts)
	if len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}

	res := Result{
		Query:       q,
		Posts:       posts,
		Sources:     reports,
		GeneratedAt: o.opts.Now().UTC(),
	}

	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	metrics.AggregationPosts.Observe(float64(len(posts)))
	o.logger.Info("Aggregation complete",
		"query", q.Normalized(),
		"platform", q.Platform,
		"candidates", len(merged),
		"posts", len(posts),
		"duration", time.Since(start))

	o.notify(ctx, res)
	return res, nil
}

// collect produces one platform's contribution, from cache or network.
func (o *Orchestrator) collect(ctx context.Context, p domain.Platform, q domain.Query) ([]domain.UnifiedPost, SourceReport) {
	rep := SourceReport{Platform: p}
	start := time.Now()

	f, ok := o.fetchers[p]
	if !ok {
		o.logger.Warn("No adapter registered", "platform", p)
		return nil, rep
	}

	key := cache.Key(p, q, q.Limit)
	if o.cache != nil {
		if posts, hit := o.cache.Get(ctx, key); hit {
			rep.Count, rep.Cached = len(posts), true
			rep.Duration = time.Since(start)
			return posts, rep
		}
	}

	budget := o.opts.Budgets.of(p)
	posts, outcome := o.race(ctx, f, q, budget)
	rep.Count = len(posts)
	rep.Duration = time.Since(start)
	switch outcome {
	case fetchTimedOut:
		rep.TimedOut = true
		metrics.AdapterTimeouts.WithLabelValues(string(p)).Inc()
		o.logger.Warn("Platform budget exceeded", "platform", p, "budget", budget)
		return nil, rep
	case fetchAborted:
		rep.Aborted = true
		o.logger.Debug("Platform fetch abandoned by caller", "platform", p, "err", ctx.Err())
		return nil, rep
	}

	if o.cache != nil && len(posts) > 0 {
		o.cache.Set(ctx, key, posts, o.opts.CacheTTL)
	}
	return posts, rep
}

type fetchOutcome int

const (
	fetchDone fetchOutcome = iota
	fetchTimedOut
	fetchAborted
)

// race runs one fetch against its budget. When the budget or the caller wins
// the fetch is abandoned: its context is cancelled and its late result
// discarded.
func (o *Orchestrator) race(ctx context.Context, f Fetcher, q domain.Query, budget time.Duration) ([]domain.UnifiedPost, fetchOutcome) {
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan []domain.UnifiedPost, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Adapter panicked", "platform", f.Platform(), "panic", r)
				done <- nil
			}
		}()
		done <- f.Fetch(fctx, q, q.Limit)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case posts := <-done:
		return posts, fetchDone
	case <-timer.C:
		return nil, fetchTimedOut
	case <-ctx.Done():
		return nil, fetchAborted
	}
}

func (o *Orchestrator) notify(ctx context.Context, r Result) {
	if o.opts.Notifier == nil {
		return
	}
	if err := o.opts.Notifier.Notify(ctx, r); err != nil {
		o.logger.Warn("Aggregation notification failed", "err", err)
	}
}
