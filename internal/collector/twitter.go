package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
)

const twitterWebHost = "https://twitter.com"

// NitterFeed builds the RSS search strategy for one Nitter instance.
func NitterFeed(instance string, src httpSource) Step {
	instance = strings.TrimRight(instance, "/")
	host := instance
	if u, err := url.Parse(instance); err == nil && u.Host != "" {
		host = u.Host
	}
	s := NewFeedStrategy("nitter-rss:"+host, src, func(q domain.Query, _ int) string {
		return fmt.Sprintf("%s/search/rss?f=tweets&q=%s", instance, url.QueryEscape(q.Text))
	})
	return Step{Strategy: s, Normalize: normalizeNitter}
}

func normalizeNitter(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	link := nitterToTwitter(normalize.PickString(raw, "link"))
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "published")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformTwitter,
		ID:        statusID(link),
		Author:    normalize.PickString(raw, "author"),
		Content:   normalize.PickString(raw, "description", "title"),
		URL:       link,
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "image"),
	}, fetchedAt)
}

// nitterToTwitter rewrites a mirror permalink to the canonical host so the
// same status collapses across mirrors.
func nitterToTwitter(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return link
	}
	return twitterWebHost + u.Path
}

func statusID(link string) string {
	if !strings.Contains(link, "/status/") {
		return ""
	}
	return path.Base(link)
}

// GuestTokenStrategy searches through the web client's guest session. The
// guest token is activated per attempt and never stored.
type GuestTokenStrategy struct {
	src     httpSource
	apiBase string
	bearer  string
}

func NewGuestTokenStrategy(apiBase, bearer string, src httpSource) *GuestTokenStrategy {
	return &GuestTokenStrategy{src: src, apiBase: strings.TrimRight(apiBase, "/"), bearer: bearer}
}

func (g *GuestTokenStrategy) Name() string { return "twitter-guest" }

func (g *GuestTokenStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	if g.bearer == "" {
		return nil, domain.ErrStrategyNotEnabled
	}
	token, err := g.activate(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("count", fmt.Sprint(limit))
	params.Set("tweet_search_mode", "top")
	params.Set("query_source", "typed_query")
	params.Set("tweet_mode", "extended")

	var resp struct {
		GlobalObjects struct {
			Tweets map[string]map[string]any `json:"tweets"`
			Users  map[string]map[string]any `json:"users"`
		} `json:"globalObjects"`
	}
	header := http.Header{
		"Authorization": []string{"Bearer " + g.bearer},
		"X-Guest-Token": []string{token},
	}
	if err := g.src.getJSON(ctx, g.apiBase+"/2/search/adaptive.json?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.GlobalObjects.Tweets))
	for id := range resp.GlobalObjects.Tweets {
		ids = append(ids, id)
	}
	// Snowflake ids: longer is newer, then lexical.
	slices.SortFunc(ids, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(b, a)
	})

	out := make([]domain.RawRecord, 0, len(ids))
	for _, id := range ids {
		tw := resp.GlobalObjects.Tweets[id]
		rec := domain.RawRecord(tw)
		if uid, ok := tw["user_id_str"].(string); ok {
			if u, ok := resp.GlobalObjects.Users[uid]; ok {
				rec["user"] = u
			}
		}
		out = append(out, rec)
	}
	return capRecords(out, limit), nil
}

func (g *GuestTokenStrategy) activate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+"/1.1/guest/activate.json", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.bearer)

	body, err := g.src.do(req)
	if err != nil {
		return "", err
	}
	var tok struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.GuestToken == "" {
		return "", fmt.Errorf("%w: no guest token issued", domain.ErrStrategyFailed)
	}
	return tok.GuestToken, nil
}

func normalizeTweet(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	id := normalize.PickString(raw, "id_str", "id")
	user := normalize.PickString(raw, "user.screen_name", "username")
	link := normalize.PickString(raw, "url")
	if link == "" && id != "" && user != "" {
		link = fmt.Sprintf("%s/%s/status/%s", twitterWebHost, user, id)
	}
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "created_at", "timestamp")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformTwitter,
		ID:        id,
		Author:    user,
		Content:   normalize.PickString(raw, "full_text", "text"),
		URL:       link,
		Likes:     normalize.PickInt(raw, "favorite_count", "likes"),
		Comments:  normalize.PickInt(raw, "reply_count", "replies"),
		Reposts:   normalize.PickInt(raw, "retweet_count", "retweets"),
		Views:     normalize.PickInt(raw, "ext_views.count", "views"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "entities.media.0.media_url_https", "images.0"),
	}, fetchedAt)
}
