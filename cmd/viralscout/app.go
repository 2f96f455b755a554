package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qepting91/viralscout/internal/aggregator"
	"github.com/qepting91/viralscout/internal/cache"
	"github.com/qepting91/viralscout/internal/collector"
	"github.com/qepting91/viralscout/internal/config"
	"github.com/qepting91/viralscout/internal/events"
	"github.com/qepting91/viralscout/internal/scoring"
)

// app is the composition root. Everything with a lifetime is created here
// and released by Close.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     *cache.Layer
	publisher *events.NatsPublisher
	orch      *aggregator.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	adapters, err := collector.NewAdapters(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collector: %w", err)
	}
	logger.Info("Collector initialized", "mode", cfg.Collector.Mode, "adapters", len(adapters))

	a := &app{cfg: cfg, logger: logger}
	a.cache = cache.NewFromConfig(ctx, cfg.Cache, logger)

	var notifier aggregator.Notifier
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Warn("NATS unavailable, aggregation events disabled", "err", err)
		} else {
			a.publisher = pub
			notifier = pub
		}
	}

	fetchers := make([]aggregator.Fetcher, 0, len(adapters))
	for _, ad := range adapters {
		fetchers = append(fetchers, ad)
	}
	a.orch = aggregator.New(fetchers, a.cache, aggregator.Options{
		Budgets: aggregator.BudgetsFromConfig(cfg.Aggregator),
		Weights: scoring.Weights{
			Comments: cfg.Scoring.CommentWeight,
			Reposts:  cfg.Scoring.RepostWeight,
			Decay:    cfg.Scoring.Decay,
		},
		CacheTTL: cfg.Cache.TTL,
		Notifier: notifier,
		Logger:   logger,
	})
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Cache close failed", "err", err)
		}
	}
}
