package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
)

// tagSlug turns free text into a Dev.to tag: lower-case alphanumerics only.
func tagSlug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DevToArticlesStrategy lists the week's top articles for the query's tag.
type DevToArticlesStrategy struct {
	base string
	src  httpSource
}

func NewDevToArticlesStrategy(base string, src httpSource) *DevToArticlesStrategy {
	return &DevToArticlesStrategy{base: strings.TrimRight(base, "/"), src: src}
}

func (s *DevToArticlesStrategy) Name() string { return "devto-api" }

func (s *DevToArticlesStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	tag := tagSlug(q.Text)
	if tag == "" {
		return nil, nil
	}
	u := fmt.Sprintf("%s/api/articles?tag=%s&top=7&per_page=%d", s.base, url.QueryEscape(tag), limit)

	var items []any
	if err := s.src.getJSON(ctx, u, nil, &items); err != nil {
		return nil, err
	}
	return capRecords(records(items), limit), nil
}

// DevToSearchStrategy uses the site search endpoint, which matches free text
// rather than tags.
type DevToSearchStrategy struct {
	base string
	src  httpSource
}

func NewDevToSearchStrategy(base string, src httpSource) *DevToSearchStrategy {
	return &DevToSearchStrategy{base: strings.TrimRight(base, "/"), src: src}
}

func (s *DevToSearchStrategy) Name() string { return "devto-search" }

func (s *DevToSearchStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	params := url.Values{}
	params.Set("per_page", fmt.Sprint(limit))
	params.Set("page", "0")
	params.Set("search_fields", q.Text)
	params.Set("class_name", "Article")
	params.Set("sort_by", "public_reactions_count")
	params.Set("sort_direction", "desc")

	var resp struct {
		Result []any `json:"result"`
	}
	if err := s.src.getJSON(ctx, s.base+"/search/feed_content?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := records(resp.Result)
	for _, r := range out {
		if p, ok := r["path"].(string); ok && strings.HasPrefix(p, "/") {
			r["url"] = s.base + p
		}
	}
	return capRecords(out, limit), nil
}

// DevToFeed builds the tag RSS strategy.
func DevToFeed(base string, src httpSource) Step {
	base = strings.TrimRight(base, "/")
	s := NewFeedStrategy("devto-rss", src, func(q domain.Query, _ int) string {
		return fmt.Sprintf("%s/feed/tag/%s", base, url.PathEscape(tagSlug(q.Text)))
	})
	return Step{Strategy: s, Normalize: normalizeDevToFeed}
}

func normalizeDevToArticle(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "published_timestamp", "published_at", "published_at_int", "readable_publish_date")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformDevTo,
		ID:        normalize.PickString(raw, "id"),
		Author:    normalize.PickString(raw, "user.username", "user.name"),
		Title:     normalize.PickString(raw, "title"),
		Content:   normalize.PickString(raw, "description", "title"),
		URL:       normalize.PickString(raw, "url", "canonical_url"),
		Likes:     normalize.PickInt(raw, "public_reactions_count", "positive_reactions_count"),
		Comments:  normalize.PickInt(raw, "comments_count"),
		Reposts:   0,
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "cover_image", "social_image", "main_image"),
	}, fetchedAt)
}

func normalizeDevToFeed(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "published")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformDevTo,
		Author:    normalize.PickString(raw, "author"),
		Title:     normalize.PickString(raw, "title"),
		Content:   normalize.PickString(raw, "description", "content", "title"),
		URL:       normalize.PickString(raw, "link"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "image"),
	}, fetchedAt)
}
