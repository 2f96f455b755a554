package collector

import (
	"context"
	"log/slog"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
)

// Adapter exposes one platform behind a fetch that never fails: every
// strategy failure is absorbed by the chain and surfaces as an empty slice.
type Adapter struct {
	platform domain.Platform
	chain    *Chain
	logger   *slog.Logger
}

func NewAdapter(platform domain.Platform, chain *Chain, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{platform: platform, chain: chain, logger: logger}
}

func (a *Adapter) Platform() domain.Platform { return a.platform }

// Strategies lists the chain's strategy names in priority order.
func (a *Adapter) Strategies() []string { return a.chain.Steps() }

// Fetch always returns a non-nil slice.
func (a *Adapter) Fetch(ctx context.Context, q domain.Query, limit int) (posts []domain.UnifiedPost) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Adapter recovered from panic", "platform", a.platform, "panic", r)
			posts = []domain.UnifiedPost{}
		}
	}()

	posts, winner := a.chain.Run(ctx, q, limit)
	metrics.AdapterPosts.WithLabelValues(string(a.platform)).Set(float64(len(posts)))

	if winner == "" {
		metrics.AdapterExhausted.WithLabelValues(string(a.platform)).Inc()
		a.logger.Warn("All strategies exhausted", "platform", a.platform, "query", q.Text, "err", domain.ErrPlatformExhausted)
		return []domain.UnifiedPost{}
	}

	a.logger.Info("Platform fetched", "platform", a.platform, "strategy", winner, "posts", len(posts))
	return posts
}
