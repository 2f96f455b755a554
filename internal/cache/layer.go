package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/config"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// maxPending bounds the invalidations queued for an unreachable backend.
// Past it the queue collapses into a single flush.
const maxPending = 256

// Options configure a Layer.
type Options struct {
	TTL        time.Duration
	RetryAfter time.Duration // how long to stay on the fallback before re-probing
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Backend       string  `json:"backend"`
	Degraded      bool    `json:"degraded"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	Sets          int64   `json:"sets"`
	Deletes       int64   `json:"deletes"`
	Evictions     int64   `json:"evictions"`
	BackendErrors int64   `json:"backendErrors"`
	MemoryKeys    int     `json:"memoryKeys"`
	TTLSeconds    float64 `json:"ttlSeconds"`

	// PendingInvalidations are deletes or flushes not yet applied to the
	// shared backend.
	PendingInvalidations int `json:"pendingInvalidations"`
}

// Layer is the cache consumed by the orchestrator. It never returns an
// error: a failing backend only ever shows up as a miss.
type Layer struct {
	primary Store // nil when no shared backend is configured
	memory  *MemoryStore
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	degraded   bool
	retryAfter time.Time
	pending    []invalidation

	replayMu sync.Mutex

	hits, misses, sets, deletes, evictions, backendErrors atomic.Int64
}

func New(primary Store, opts Options, logger *slog.Logger) *Layer {
	if opts.TTL <= 0 {
		opts.TTL = 6 * time.Hour
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		primary: primary,
		memory:  NewMemoryStore(),
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// NewFromConfig connects to Redis when an address is configured. An
// unreachable Redis at startup leaves the layer degraded, not failed.
func NewFromConfig(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) *Layer {
	var primary Store
	if cfg.RedisAddr != "" {
		primary = NewRedisStore(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			MaxRetries:   1,
		})
	}
	l := New(primary, Options{TTL: cfg.TTL, RetryAfter: cfg.RetryAfter}, logger)

	if primary != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := primary.Ping(pingCtx); err != nil {
			l.backendErr(ctx, err)
		} else {
			logger.Info("Cache connected", "backend", BackendRedis, "addr", cfg.RedisAddr)
		}
	}
	return l
}

// TTL is the default entry lifetime.
func (l *Layer) TTL() time.Duration { return l.opts.TTL }

// Get returns the cached posts for key. The returned slice is a fresh copy.
func (l *Layer) Get(ctx context.Context, key string) ([]domain.UnifiedPost, bool) {
	if p := l.usable(ctx); p != nil {
		b, found, err := p.Get(ctx, key)
		if err != nil {
			l.backendErr(ctx, err)
		} else {
			l.ok()
			if posts, ok := l.decode(b); found && ok {
				l.hit()
				return posts, true
			}
		}
	}

	b, ok, _ := l.memory.Get(ctx, key)
	if ok {
		if posts, ok := l.decode(b); ok {
			l.hit()
			return posts, true
		}
	}
	l.misses.Add(1)
	metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
	return nil, false
}

// Set stores posts under key. A non-positive ttl uses the layer default.
func (l *Layer) Set(ctx context.Context, key string, posts []domain.UnifiedPost, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.opts.TTL
	}
	b, err := json.Marshal(domain.CacheEntry{Key: key, Payload: posts, ExpiresAt: l.now().Add(ttl)})
	if err != nil {
		l.logger.Warn("Cache encode failed", "key", key, "err", err)
		return
	}
	l.sets.Add(1)
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()

	if p := l.usable(ctx); p != nil {
		err := p.Set(ctx, key, b, ttl)
		if err == nil {
			l.ok()
			return
		}
		l.backendErr(ctx, err)
	}
	_ = l.memory.Set(ctx, key, b, ttl)
}

// Delete removes one key from every tier. The shared backend is tried even
// during a degraded cool-down; a delete it cannot take is replayed once it
// is reachable again.
func (l *Layer) Delete(ctx context.Context, key string) int {
	n, _ := l.memory.Delete(ctx, key)
	n += l.invalidate(ctx, invalidation{kind: invalidateKey, arg: key})
	l.deletes.Add(int64(n))
	return n
}

// DeletePattern removes every key matching a glob pattern. Patterns without
// the namespace prefix are scoped to it.
func (l *Layer) DeletePattern(ctx context.Context, pattern string) int {
	pattern = namespaced(pattern)
	n, err := l.memory.DeletePattern(ctx, pattern)
	if err != nil {
		l.logger.Warn("Invalid cache pattern", "pattern", pattern, "err", err)
		return 0
	}
	n += l.invalidate(ctx, invalidation{kind: invalidatePattern, arg: pattern})
	l.deletes.Add(int64(n))
	return n
}

// Flush empties the namespace in every tier.
func (l *Layer) Flush(ctx context.Context) {
	_ = l.memory.Flush(ctx)
	l.invalidate(ctx, invalidation{kind: invalidateAll})
	l.logger.Info("Cache flushed", "pending", l.pendingCount())
}

// Sweep evicts expired in-process entries.
func (l *Layer) Sweep() int {
	n := l.memory.Sweep()
	l.evictions.Add(int64(n))
	return n
}

func (l *Layer) Stats() Stats {
	l.mu.Lock()
	degraded := l.degraded
	l.mu.Unlock()

	backend := BackendMemory
	if l.primary != nil && !degraded {
		backend = BackendRedis
	}
	pending := l.pendingCount()
	hits, misses := l.hits.Load(), l.misses.Load()
	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Backend:       backend,
		Degraded:      degraded,
		Hits:          hits,
		Misses:        misses,
		HitRate:       rate,
		Sets:          l.sets.Load(),
		Deletes:       l.deletes.Load(),
		Evictions:     l.evictions.Load(),
		BackendErrors: l.backendErrors.Load(),
		MemoryKeys:    l.memory.Len(),
		TTLSeconds:    l.opts.TTL.Seconds(),

		PendingInvalidations: pending,
	}
}

func (l *Layer) Close() error {
	if l.primary != nil {
		return l.primary.Close()
	}
	return nil
}

// usable returns the shared backend unless it is in its degraded cool-down
// or its queued invalidations cannot be replayed yet.
func (l *Layer) usable(ctx context.Context) Store {
	if l.primary == nil {
		return nil
	}
	l.mu.Lock()
	cooling := l.degraded && l.now().Before(l.retryAfter)
	l.mu.Unlock()
	if cooling || !l.settle(ctx) {
		return nil
	}
	return l.primary
}

type invalidationKind int

const (
	invalidateKey invalidationKind = iota
	invalidatePattern
	invalidateAll
)

type invalidation struct {
	kind invalidationKind
	arg  string
}

func (inv invalidation) apply(ctx context.Context, s Store) (int, error) {
	switch inv.kind {
	case invalidateKey:
		return s.Delete(ctx, inv.arg)
	case invalidatePattern:
		return s.DeletePattern(ctx, inv.arg)
	default:
		return 0, s.Flush(ctx)
	}
}

// invalidate applies inv to the shared backend, bypassing the cool-down, and
// returns how many backend keys it removed. On failure inv is queued.
func (l *Layer) invalidate(ctx context.Context, inv invalidation) int {
	if l.primary == nil {
		return 0
	}
	if !l.settle(ctx) {
		l.enqueue(inv)
		return 0
	}
	n, err := inv.apply(ctx, l.primary)
	if err != nil {
		l.enqueue(inv)
		l.backendErr(ctx, err)
		return 0
	}
	l.ok()
	return n
}

// settle replays queued invalidations in order. It reports false, leaving
// the unapplied tail queued, when the backend rejects one.
func (l *Layer) settle(ctx context.Context) bool {
	l.replayMu.Lock()
	defer l.replayMu.Unlock()

	l.mu.Lock()
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()
	if len(queued) == 0 {
		return true
	}

	for i, inv := range queued {
		if _, err := inv.apply(ctx, l.primary); err != nil {
			l.mu.Lock()
			l.pending = append(queued[i:len(queued):len(queued)], l.pending...)
			l.mu.Unlock()
			l.backendErr(ctx, err)
			return false
		}
	}
	l.logger.Info("Replayed cache invalidations", "count", len(queued))
	l.ok()
	return true
}

func (l *Layer) enqueue(inv invalidation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inv.kind == invalidateAll || len(l.pending) >= maxPending {
		l.pending = []invalidation{{kind: invalidateAll}}
		return
	}
	l.pending = append(l.pending, inv)
}

func (l *Layer) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// backendErr records a failed backend call. A call that failed only because
// its own context ended says nothing about the backend and is not counted.
func (l *Layer) backendErr(ctx context.Context, err error) {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		l.logger.Debug("Cache call abandoned by caller", "err", err)
		return
	}
	l.fail(err)
}

// fail switches to the in-process fallback. Only the first failure of a
// degraded period is logged.
func (l *Layer) fail(err error) {
	l.backendErrors.Add(1)
	metrics.CacheBackendErrors.Inc()

	l.mu.Lock()
	wasDegraded := l.degraded
	l.degraded = true
	l.retryAfter = l.now().Add(l.opts.RetryAfter)
	l.mu.Unlock()

	metrics.CacheDegraded.Set(1)
	if !wasDegraded {
		l.logger.Warn("Cache backend unavailable, using in-memory fallback", "err", err, "retry_in", l.opts.RetryAfter)
	}
}

// ok records a successful backend round trip, leaving degraded mode.
func (l *Layer) ok() {
	l.mu.Lock()
	recovered := l.degraded
	l.degraded = false
	l.mu.Unlock()
	if recovered {
		metrics.CacheDegraded.Set(0)
		l.logger.Info("Cache backend recovered", "backend", BackendRedis)
	}
}

func (l *Layer) hit() {
	l.hits.Add(1)
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
}

func (l *Layer) decode(b []byte) ([]domain.UnifiedPost, bool) {
	var e domain.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false
	}
	if !e.ExpiresAt.IsZero() && !l.now().Before(e.ExpiresAt) {
		return nil, false
	}
	if e.Payload == nil {
		e.Payload = []domain.UnifiedPost{}
	}
	return e.Payload, true
}
