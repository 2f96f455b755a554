package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/qepting91/viralscout/internal/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

type topicsResponse struct {
	Query  string   `json:"query"`
	Topics []string `json:"topics"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Cache     string            `json:"cache,omitempty"`
	Degraded  bool              `json:"degraded"`
	Platforms []domain.Platform `json:"platforms"`
}

type deleteResponse struct {
	Pattern string `json:"pattern,omitempty"`
	Deleted int    `json:"deleted"`
	Flushed bool   `json:"flushed"`
	// Pending counts invalidations queued until the shared backend is back.
	Pending int    `json:"pending"`
}

// Viral handles GET /api/v1/viral.
func (h *Handler) Viral(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	res, err := h.agg.Aggregate(r.Context(), q)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Topics handles GET /api/v1/topics: the ranked post texts, for consumers
// that only want topic strings.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	res, err := h.agg.Aggregate(r.Context(), q)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	topics := make([]string, 0, len(res.Posts))
	for _, p := range res.Posts {
		text := p.Content
		if text == "" {
			text = p.Title
		}
		if text != "" {
			topics = append(topics, text)
		}
	}
	writeJSON(w, http.StatusOK, topicsResponse{Query: q.Text, Topics: topics})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheDelete removes keys matching ?pattern=, or everything without one.
func (h *Handler) CacheDelete(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	pattern := strings.TrimSpace(r.URL.Query().Get("pattern"))
	if pattern == "" {
		h.cache.Flush(r.Context())
		h.logger.Info("Cache flushed via API", "request_id", GetRequestID(r.Context()))
		writeJSON(w, http.StatusOK, deleteResponse{Flushed: true, Pending: h.cache.Stats().PendingInvalidations})
		return
	}
	n := h.cache.DeletePattern(r.Context(), pattern)
	h.logger.Info("Cache pattern deleted via API", "pattern", pattern, "deleted", n)
	writeJSON(w, http.StatusOK, deleteResponse{Pattern: pattern, Deleted: n, Pending: h.cache.Stats().PendingInvalidations})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Platforms: h.agg.Platforms()}
	if h.cache != nil {
		s := h.cache.Stats()
		resp.Cache, resp.Degraded = s.Backend, s.Degraded
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseQuery(r *http.Request) (domain.Query, error) {
	v := r.URL.Query()
	limit, err := intParam(v.Get("limit"), "limit")
	if err != nil {
		return domain.Query{}, err
	}
	minEng, err := intParam(v.Get("minEngagement"), "minEngagement")
	if err != nil {
		return domain.Query{}, err
	}
	text := v.Get("query")
	if text == "" {
		text = v.Get("q")
	}
	return domain.NewQuery(text, v.Get("platform"), limit, minEng)
}

func intParam(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidQuery, name)
	}
	return n, nil
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if !errors.Is(err, domain.ErrInvalidQuery) {
		status = http.StatusInternalServerError
		h.logger.Error("Unexpected aggregation error", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: GetRequestID(r.Context())})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
