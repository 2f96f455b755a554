// Package scoring computes a cross-platform virality score and ranks posts.
package scoring

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

// Weights parametrise the score:
//
//	raw   = likes + comments*Comments + reposts*Reposts
//	score = raw / max(1, ageHours)^Decay
type Weights struct {
	Comments float64
	Reposts  float64
	Decay    float64
}

func DefaultWeights() Weights {
	return Weights{Comments: 2, Reposts: 3, Decay: 0.8}
}

type Scorer struct {
	weights Weights
	now     func() time.Time
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w, now: time.Now}
}

// WithClock returns a copy of the scorer that reads time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Score is a pure function of engagement and age at the scorer's clock.
func (s *Scorer) Score(p domain.UnifiedPost) float64 {
	raw := float64(p.Likes) + float64(p.Comments)*s.weights.Comments + float64(p.Reposts)*s.weights.Reposts

	age := 0.0
	if !p.Timestamp.IsZero() {
		age = s.now().Sub(p.Timestamp).Hours()
	}
	return raw / math.Pow(math.Max(1, age), s.weights.Decay)
}

// Apply scores every post in place against a single clock reading.
func (s *Scorer) Apply(posts []domain.UnifiedPost) {
	now := s.now()
	fixed := s.WithClock(func() time.Time { return now })
	for i := range posts {
		posts[i].Score = fixed.Score(posts[i])
	}
}

// Rank sorts by score descending; ties go to the newer post, then to the
// lexically smaller id.
func Rank(posts []domain.UnifiedPost) {
	slices.SortStableFunc(posts, func(a, b domain.UnifiedPost) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
