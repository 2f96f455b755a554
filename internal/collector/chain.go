package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
)

// Chain tries its steps strictly in order and keeps the first one that
// produces at least one usable post.
type Chain struct {
	platform domain.Platform
	steps    []Step
	logger   *slog.Logger
	now      func() time.Time
}

func NewChain(platform domain.Platform, logger *slog.Logger, steps ...Step) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		platform: platform,
		steps:    steps,
		logger:   logger.With("platform", string(platform)),
		now:      time.Now,
	}
}

// Steps returns the strategy names in priority order.
func (c *Chain) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Strategy.Name()
	}
	return names
}

// Run returns the posts of the first successful step and that step's name.
// Exhaustion yields an empty slice and an empty name.
func (c *Chain) Run(ctx context.Context, q domain.Query, limit int) ([]domain.UnifiedPost, string) {
	for _, step := range c.steps {
		if ctx.Err() != nil {
			return []domain.UnifiedPost{}, ""
		}
		name := step.Strategy.Name()

		start := time.Now()
		raw, err := c.attempt(ctx, step.Strategy, q, limit)
		elapsed := time.Since(start)

		if err != nil {
			metrics.ObserveStrategy(string(c.platform), name, outcome(err), elapsed)
			c.logger.Debug("Strategy failed", "strategy", name, "err", err, "elapsed", elapsed)
			continue
		}

		posts := c.normalize(step, raw, limit)
		if len(posts) == 0 {
			metrics.ObserveStrategy(string(c.platform), name, "empty", elapsed)
			c.logger.Debug("Strategy yielded nothing", "strategy", name, "raw", len(raw))
			continue
		}

		metrics.ObserveStrategy(string(c.platform), name, "ok", elapsed)
		return posts, name
	}
	return []domain.UnifiedPost{}, ""
}

// attempt isolates a single strategy call: a panic becomes an error.
func (c *Chain) attempt(ctx context.Context, s Strategy, q domain.Query, limit int) (raw []domain.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: panic: %v", errStrategyPanic, r)
		}
	}()
	return s.Attempt(ctx, q, limit)
}

func (c *Chain) normalize(step Step, raw []domain.RawRecord, limit int) []domain.UnifiedPost {
	fetchedAt := c.now()
	posts := make([]domain.UnifiedPost, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		p, ok := safeNormalize(step.Normalize, r, fetchedAt)
		if !ok {
			continue
		}
		p.Platform = c.platform
		p.Strategy = step.Strategy.Name()
		posts = append(posts, p)
		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts
}

func safeNormalize(fn Normalizer, r domain.RawRecord, fetchedAt time.Time) (p domain.UnifiedPost, ok bool) {
	defer func() {
		if recover() != nil {
			p, ok = domain.UnifiedPost{}, false
		}
	}()
	return fn(r, fetchedAt)
}

var errStrategyPanic = errors.New("strategy panicked")

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrBlocked):
		return "blocked"
	case errors.Is(err, errStrategyPanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
