package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query is an immutable aggregation request
type Query struct {
	Text          string `json:"query" validate:"required,max=256"`
	Platform      string `json:"platform"`
	Limit         int    `json:"limit" validate:"min=1,max=100"`
	MinEngagement int    `json:"minEngagement" validate:"min=0"`

	platforms []Platform
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewQuery validates and builds a Query. A zero limit takes DefaultLimit.
func NewQuery(text, platform string, limit, minEngagement int) (Query, error) {
	q := Query{
		Text:          strings.TrimSpace(text),
		Platform:      strings.ToLower(strings.TrimSpace(platform)),
		Limit:         limit,
		MinEngagement: minEngagement,
	}
	if q.Platform == "" {
		q.Platform = FilterAll
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}

	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Query{}, fmt.Errorf("%w: %s failed %q", ErrInvalidQuery, strings.ToLower(fe.Field()), fe.Tag())
		}
		return Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	platforms, err := ParsePlatformFilter(q.Platform)
	if err != nil {
		return Query{}, err
	}
	q.platforms = platforms
	return q, nil
}

// Platforms returns the resolved target platforms in fixed order.
func (q Query) Platforms() []Platform {
	if q.platforms == nil {
		ps, err := ParsePlatformFilter(q.Platform)
		if err != nil {
			return nil
		}
		return ps
	}
	out := make([]Platform, len(q.platforms))
	copy(out, q.platforms)
	return out
}

// Normalized is the cache-facing form of the query text.
func (q Query) Normalized() string {
	return strings.ToLower(strings.Join(strings.Fields(q.Text), " "))
}
