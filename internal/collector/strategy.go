package collector

import (
	"context"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

// Strategy is one way of reaching a platform: an API, a mirror, a feed or a
// helper process. An error or an empty result both mean "try the next one".
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error)
}

// Normalizer maps one raw record from a specific strategy into a UnifiedPost.
// It reports false for records that cannot be used.
type Normalizer func(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool)

// Step pairs a strategy with the normalizer for its response shape.
type Step struct {
	Strategy  Strategy
	Normalize Normalizer
}
