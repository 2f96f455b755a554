package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
)

// MockStrategy returns fake posts for any platform; used by the mock
// collector mode for local demos.
type MockStrategy struct {
	platform domain.Platform
	latency  time.Duration
}

func NewMockStrategy(platform domain.Platform, latency time.Duration) *MockStrategy {
	return &MockStrategy{platform: platform, latency: latency}
}

func (m *MockStrategy) Name() string { return "mock:" + string(m.platform) }

func (m *MockStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	// Simulate network latency
	select {
	case <-time.After(m.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	now := time.Now()
	out := make([]domain.RawRecord, 0, limit)
	for i := range limit {
		out = append(out, domain.RawRecord{
			"id":        fmt.Sprintf("mock_%s_%d", m.platform, i),
			"text":      fmt.Sprintf("[%s] Simulated post #%d about %s", m.platform, i, q.Text),
			"author":    "simulated_user",
			"url":       fmt.Sprintf("https://example.com/%s/%d", m.platform, i),
			"likes":     float64(rand.Intn(5000)),
			"replies":   float64(rand.Intn(300)),
			"reposts":   float64(rand.Intn(200)),
			"timestamp": now.Add(-time.Duration(rand.Intn(72)) * time.Hour).Format(time.RFC3339),
		})
	}
	return out, nil
}

// MockStep pairs a mock strategy with its normalizer.
func MockStep(platform domain.Platform, latency time.Duration) Step {
	m := NewMockStrategy(platform, latency)
	return Step{Strategy: m, Normalize: m.normalize}
}

func (m *MockStrategy) normalize(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "timestamp")
	return normalize.Finish(domain.UnifiedPost{
		Platform:  m.platform,
		ID:        normalize.PickString(raw, "id"),
		Author:    normalize.PickString(raw, "author"),
		Content:   normalize.PickString(raw, "text"),
		URL:       normalize.PickString(raw, "url"),
		Likes:     normalize.PickInt(raw, "likes"),
		Comments:  normalize.PickInt(raw, "replies"),
		Reposts:   normalize.PickInt(raw, "reposts"),
		Timestamp: ts,
		Estimated: estimated,
	}, fetchedAt)
}
