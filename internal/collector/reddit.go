package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
	"golang.org/x/time/rate"
)

const redditWebHost = "https://www.reddit.com"

// RedditCredentials are the script-app credentials for the official API.
type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

func (c RedditCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// RedditAPIStrategy searches through the authenticated API.
type RedditAPIStrategy struct {
	client  *reddit.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func NewRedditAPIStrategy(creds RedditCredentials, userAgent string, timeout time.Duration) (*RedditAPIStrategy, error) {
	client, err := reddit.NewClient(reddit.Credentials{
		ID:       creds.ClientID,
		Secret:   creds.ClientSecret,
		Username: creds.Username,
		Password: creds.Password,
	}, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}

	return &RedditAPIStrategy{
		client: client,
		// API Rate Limit: ~60 reqs/min
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		timeout: timeout,
	}, nil
}

func (s *RedditAPIStrategy) Name() string { return "reddit-api" }

func (s *RedditAPIStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, resp, err := s.client.Subreddit.SearchPosts(ctx, q.Text, "all", &reddit.ListPostSearchOptions{
		ListPostOptions: reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: limit},
			Time:        "week",
		},
		Sort: "top",
	})
	if err != nil {
		if resp != nil {
			if cerr := classifyStatus(resp.StatusCode); cerr != nil {
				return nil, cerr
			}
		}
		return nil, fmt.Errorf("%w: authenticated api: %v", domain.ErrStrategyFailed, err)
	}

	out := make([]domain.RawRecord, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		rec := domain.RawRecord{
			"id":                      p.ID,
			"title":                   p.Title,
			"selftext":                p.Body,
			"author":                  p.Author,
			"url":                     p.URL,
			"permalink":               p.Permalink,
			"score":                   float64(p.Score),
			"num_comments":            float64(p.NumberOfComments),
			"subreddit_name_prefixed": p.SubredditNamePrefixed,
		}
		if p.Created != nil {
			rec["created_utc"] = float64(p.Created.Time.Unix())
		}
		out = append(out, rec)
	}
	return out, nil
}

// RedditJSONStrategy reads the public search.json listing from one host
// (www or old reddit, or a compatible mirror).
type RedditJSONStrategy struct {
	host string
	name string
	src  httpSource
}

func NewRedditJSONStrategy(host string, src httpSource) *RedditJSONStrategy {
	host = strings.TrimRight(host, "/")
	name := host
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		name = u.Host
	}
	return &RedditJSONStrategy{host: host, name: "reddit-json:" + name, src: src}
}

func (s *RedditJSONStrategy) Name() string { return s.name }

func (s *RedditJSONStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	if s.src.userAgent == "" {
		return nil, fmt.Errorf("%w: a User-Agent is required for public reddit access", domain.ErrStrategyNotEnabled)
	}
	u := fmt.Sprintf("%s/search.json?q=%s&sort=top&t=week&limit=%d&raw_json=1", s.host, url.QueryEscape(q.Text), limit)

	var listing struct {
		Data struct {
			Children []struct {
				Kind string         `json:"kind"`
				Data map[string]any `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := s.src.getJSON(ctx, u, nil, &listing); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Data != nil {
			out = append(out, domain.RawRecord(child.Data))
		}
	}
	return capRecords(out, limit), nil
}

// RedditFeed builds the search RSS strategy.
func RedditFeed(host string, src httpSource) Step {
	host = strings.TrimRight(host, "/")
	s := NewFeedStrategy("reddit-rss", src, func(q domain.Query, limit int) string {
		return fmt.Sprintf("%s/search.rss?q=%s&sort=top&t=week&limit=%d", host, url.QueryEscape(q.Text), limit)
	})
	return Step{Strategy: s, Normalize: normalizeRedditFeed}
}

func normalizeRedditListing(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	link := normalize.PickString(raw, "permalink")
	if link != "" && strings.HasPrefix(link, "/") {
		link = redditWebHost + link
	}
	if link == "" {
		link = normalize.PickString(raw, "url")
	}
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "created_utc", "created")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformReddit,
		ID:        normalize.PickString(raw, "id"),
		Author:    normalize.PickString(raw, "author"),
		Title:     normalize.PickString(raw, "title"),
		Content:   normalize.PickString(raw, "selftext", "title"),
		URL:       link,
		Likes:     normalize.PickInt(raw, "score", "ups"),
		Comments:  normalize.PickInt(raw, "num_comments"),
		Reposts:   normalize.PickInt(raw, "num_crossposts"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     redditImage(raw),
	}, fetchedAt)
}

func redditImage(raw domain.RawRecord) string {
	if img := normalize.PickString(raw, "preview.images.0.source.url"); img != "" {
		return img
	}
	thumb := normalize.PickString(raw, "thumbnail")
	if strings.HasPrefix(thumb, "http") {
		return thumb
	}
	return ""
}

func normalizeRedditFeed(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "published")
	id := strings.TrimPrefix(normalize.PickString(raw, "guid"), "t3_")
	if strings.Contains(id, "/") {
		id = ""
	}

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformReddit,
		ID:        id,
		Author:    strings.TrimPrefix(normalize.PickString(raw, "author"), "/u/"),
		Title:     normalize.PickString(raw, "title"),
		Content:   normalize.PickString(raw, "title", "content", "description"),
		URL:       normalize.PickString(raw, "link"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "image"),
	}, fetchedAt)
}
