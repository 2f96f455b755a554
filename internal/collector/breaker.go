package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker placed in front of each strategy.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

type breakerStrategy struct {
	Strategy
	cb *gobreaker.CircuitBreaker[[]domain.RawRecord]
}

// WithBreaker skips a strategy for a cool-down period once it has failed
// repeatedly, so a dead mirror costs nothing on the next request.
func WithBreaker(s Strategy, cfg BreakerConfig, logger *slog.Logger) Strategy {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}
	name := s.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]domain.RawRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// An abandoned call says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker transition", "strategy", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return &breakerStrategy{Strategy: s, cb: cb}
}

func (b *breakerStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	return b.cb.Execute(func() ([]domain.RawRecord, error) {
		return b.Strategy.Attempt(ctx, q, limit)
	})
}

// State exposes the breaker state for diagnostics.
func (b *breakerStrategy) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
