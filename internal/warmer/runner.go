// Package warmer periodically runs the watchlist through the aggregator so
// popular queries are answered from cache and exported for the dashboard.
package warmer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qepting91/viralscout/internal/aggregator"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/ingest"
	"github.com/qepting91/viralscout/internal/storage"
)

// Aggregator is the subset of the orchestrator the warmer drives.
type Aggregator interface {
	Aggregate(ctx context.Context, q domain.Query) (aggregator.Result, error)
}

type Config struct {
	Watchlist  string
	Interval   time.Duration
	Workers    int
	ExportPath string
}

// Summary describes one warm-up cycle.
type Summary struct {
	Queries  int
	Failed   int
	Exported int
	Duration time.Duration
}

type Runner struct {
	agg    Aggregator
	cfg    Config
	logger *slog.Logger
	load   func(path string) ([]domain.Query, error)
}

func NewRunner(agg Aggregator, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{agg: agg, cfg: cfg, logger: logger, load: ingest.LoadWatchlist}
}

// Serve runs a cycle immediately and then once per interval until ctx ends.
func (r *Runner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("Watchlist unavailable", "path", r.cfg.Watchlist, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) String() string { return "watchlist-warmer" }

// RunOnce aggregates every watchlist query with a bounded worker pool and
// replaces the export with the union of their ranked posts.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	queries, err := r.load(r.cfg.Watchlist)
	if err != nil {
		return Summary{}, err
	}

	jobQueue := make(chan domain.Query, len(queries))
	resultQueue := make(chan domain.UnifiedPost, 100)
	var workerWg sync.WaitGroup
	var writerWg sync.WaitGroup

	var writer *storage.WriterService
	if r.cfg.ExportPath != "" {
		writer = &storage.WriterService{FilePath: r.cfg.ExportPath, Truncate: true, Logger: r.logger}
		writerWg.Add(1)
		go writer.Start(&writerWg, resultQueue)
	} else {
		writerWg.Add(1)
		go func() {
			defer writerWg.Done()
			for range resultQueue {
			}
		}()
	}

	var (
		mu     sync.Mutex
		seen   = make(map[string]bool)
		failed int
	)
	for i := 0; i < min(r.cfg.Workers, max(1, len(queries))); i++ {
		workerWg.Add(1)
		go func(id int) {
			defer workerWg.Done()
			for q := range jobQueue {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res, err := r.agg.Aggregate(ctx, q)
				if err != nil {
					r.logger.Error("Warm-up query rejected", "worker", id, "query", q.Text, "err", err)
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				for _, p := range res.Posts {
					mu.Lock()
					dup := seen[p.ID]
					seen[p.ID] = true
					mu.Unlock()
					if !dup {
						resultQueue <- p
					}
				}
			}
		}(i)
	}

	for _, q := range queries {
		jobQueue <- q
	}
	close(jobQueue)

	workerWg.Wait()
	close(resultQueue)
	writerWg.Wait()

	s := Summary{Queries: len(queries), Failed: failed, Duration: time.Since(start)}
	if writer != nil {
		s.Exported = writer.Written()
	}
	r.logger.Info("Warm-up cycle complete",
		"queries", s.Queries,
		"failed", s.Failed,
		"exported", s.Exported,
		"duration", s.Duration)
	return s, nil
}
