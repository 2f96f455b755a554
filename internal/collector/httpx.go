package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/domain"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

// httpSource bundles the client, limiter and identity a strategy uses for
// every upstream call.
type httpSource struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newHTTPSource(timeout, every time.Duration, userAgent string) httpSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), 1)
	}
	return httpSource{
		client:    &http.Client{Timeout: timeout},
		limiter:   lim,
		userAgent: userAgent,
	}
}

func (h httpSource) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return h.do(req)
}

func (h httpSource) do(req *http.Request) ([]byte, error) {
	if err := h.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" && h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStrategyFailed, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrStrategyFailed, err)
	}
	return body, nil
}

func (h httpSource) getJSON(ctx context.Context, url string, header http.Header, v any) error {
	body, err := h.get(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", domain.ErrStrategyFailed, url, err)
	}
	return nil
}

// classifyStatus maps upstream refusals to ErrBlocked and any other
// non-2xx status to ErrStrategyFailed.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusForbidden, code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status %d", domain.ErrBlocked, code)
	default:
		return fmt.Errorf("%w: status %d", domain.ErrStrategyFailed, code)
	}
}

// records converts a decoded JSON array into raw records, skipping anything
// that is not an object.
func records(items []any) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, domain.RawRecord(m))
		}
	}
	return out
}

func capRecords(in []domain.RawRecord, limit int) []domain.RawRecord {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
