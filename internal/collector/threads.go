package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/normalize"
)

const (
	threadsWebHost = "https://www.threads.net"
	threadsAppID   = "238260118697367"
)

// ThreadsProxyStrategy queries a scraping proxy that already flattens Threads
// posts. Counts often arrive as display strings ("1.2K").
type ThreadsProxyStrategy struct {
	base string
	name string
	src  httpSource
}

func NewThreadsProxyStrategy(base string, src httpSource) *ThreadsProxyStrategy {
	base = strings.TrimRight(base, "/")
	name := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		name = u.Host
	}
	return &ThreadsProxyStrategy{base: base, name: "threads-proxy:" + name, src: src}
}

func (s *ThreadsProxyStrategy) Name() string { return s.name }

func (s *ThreadsProxyStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	u := fmt.Sprintf("%s/threads/search?q=%s&limit=%d", s.base, url.QueryEscape(q.Text), limit)

	var resp struct {
		Posts []any `json:"posts"`
	}
	if err := s.src.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	return capRecords(records(resp.Posts), limit), nil
}

var lsdPattern = regexp.MustCompile(`"LSD",\[\],\{"token":"([^"]+)"`)

// ThreadsGraphQLStrategy scrapes the public web client's GraphQL search. The
// LSD token is read from the page for every attempt and kept local to it.
type ThreadsGraphQLStrategy struct {
	base  string
	docID string
	src   httpSource
}

func NewThreadsGraphQLStrategy(base, docID string, src httpSource) *ThreadsGraphQLStrategy {
	return &ThreadsGraphQLStrategy{base: strings.TrimRight(base, "/"), docID: docID, src: src}
}

func (s *ThreadsGraphQLStrategy) Name() string { return "threads-graphql" }

func (s *ThreadsGraphQLStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	if s.docID == "" {
		return nil, domain.ErrStrategyNotEnabled
	}
	lsd, err := s.token(ctx, q)
	if err != nil {
		return nil, err
	}

	vars, _ := json.Marshal(map[string]any{
		"query":             q.Text,
		"first":             limit,
		"recent":            0,
		"search_surface":    "default",
		"should_fetch_feed": true,
	})
	form := url.Values{}
	form.Set("lsd", lsd)
	form.Set("doc_id", s.docID)
	form.Set("variables", string(vars))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/graphql", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-FB-LSD", lsd)
	req.Header.Set("X-IG-App-ID", threadsAppID)

	body, err := s.src.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			SearchResults struct {
				Edges []struct {
					Node struct {
						Thread struct {
							Items []struct {
								Post map[string]any `json:"post"`
							} `json:"thread_items"`
						} `json:"thread"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"searchResults"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding graphql: %v", domain.ErrStrategyFailed, err)
	}

	var out []domain.RawRecord
	for _, edge := range resp.Data.SearchResults.Edges {
		// The first item is the root post; the rest are replies in the thread.
		if items := edge.Node.Thread.Items; len(items) > 0 && items[0].Post != nil {
			out = append(out, domain.RawRecord(items[0].Post))
		}
	}
	return capRecords(out, limit), nil
}

func (s *ThreadsGraphQLStrategy) token(ctx context.Context, q domain.Query) (string, error) {
	page, err := s.src.get(ctx, s.base+"/search?q="+url.QueryEscape(q.Text)+"&serp_type=default", http.Header{
		"Accept": []string{"text/html"},
	})
	if err != nil {
		return "", err
	}
	m := lsdPattern.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("%w: no LSD token on page", domain.ErrBlocked)
	}
	return string(m[1]), nil
}

func normalizeThreadsProxy(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "timestamp", "created_at", "taken_at")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformThreads,
		ID:        normalize.PickString(raw, "id", "pk", "code"),
		Author:    normalize.PickString(raw, "author", "username", "user.username"),
		Content:   normalize.PickString(raw, "text", "caption", "content"),
		URL:       normalize.PickString(raw, "url", "permalink"),
		Likes:     normalize.PickInt(raw, "likes", "like_count"),
		Comments:  normalize.PickInt(raw, "replies", "reply_count", "comments"),
		Reposts:   normalize.PickInt(raw, "reposts", "repost_count"),
		Views:     normalize.PickInt(raw, "views"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "image", "images.0"),
	}, fetchedAt)
}

func normalizeThreadsGraphQL(raw domain.RawRecord, fetchedAt time.Time) (domain.UnifiedPost, bool) {
	user := normalize.PickString(raw, "user.username")
	code := normalize.PickString(raw, "code")
	link := ""
	if user != "" && code != "" {
		link = fmt.Sprintf("%s/@%s/post/%s", threadsWebHost, user, code)
	}
	ts, estimated := normalize.Timestamp(raw, fetchedAt, "taken_at")

	return normalize.Finish(domain.UnifiedPost{
		Platform:  domain.PlatformThreads,
		ID:        normalize.PickString(raw, "pk", "id"),
		Author:    user,
		Content:   normalize.PickString(raw, "caption.text"),
		URL:       link,
		Likes:     normalize.PickInt(raw, "like_count"),
		Comments:  normalize.PickInt(raw, "text_post_app_info.direct_reply_count"),
		Reposts:   normalize.PickInt(raw, "text_post_app_info.repost_count"),
		Timestamp: ts,
		Estimated: estimated,
		Image:     normalize.PickString(raw, "image_versions2.candidates.0.url"),
	}, fetchedAt)
}
