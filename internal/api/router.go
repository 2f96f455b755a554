// Package api exposes the aggregation engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qepting91/viralscout/internal/aggregator"
	"github.com/qepting91/viralscout/internal/cache"
	"github.com/qepting91/viralscout/internal/domain"
)

type Aggregator interface {
	Aggregate(ctx context.Context, q domain.Query) (aggregator.Result, error)
	Platforms() []domain.Platform
}

// CacheAdmin is the operator surface of the cache.
type CacheAdmin interface {
	Stats() cache.Stats
	Flush(ctx context.Context)
	DeletePattern(ctx context.Context, pattern string) int
}

type Options struct {
	CORSOrigins []string
	RateLimit   int          // requests per minute per IP
	Dashboard   http.Handler // optional
	Logger      *slog.Logger
}

type Handler struct {
	agg    Aggregator
	cache  CacheAdmin
	logger *slog.Logger
}

// NewRouter wires every route. cacheAdmin may be nil when caching is off.
func NewRouter(agg Aggregator, cacheAdmin CacheAdmin, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &Handler{agg: agg, cache: cacheAdmin, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(opts.CORSOrigins))
	r.Use(AccessLog(opts.Logger))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	if opts.Dashboard != nil {
		r.With(Metrics).Handle("/dashboard", opts.Dashboard)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimit))
		r.Use(Metrics)

		r.Get("/viral", h.Viral)
		r.Get("/topics", h.Topics)
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.CacheDelete)
	})
	return r
}
