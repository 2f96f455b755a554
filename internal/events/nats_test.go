package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/qepting91/viralscout/internal/aggregator"
	"github.com/qepting91/viralscout/internal/domain"
)

type captured struct {
	msgs []*nats.Msg
	err  error
}

func (c *captured) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func sampleResult(t *testing.T, n int) aggregator.Result {
	t.Helper()
	q, err := domain.NewQuery("golang", "reddit,devto", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	posts := make([]domain.UnifiedPost, n)
	for i := range posts {
		posts[i] = domain.UnifiedPost{ID: "reddit:" + string(rune('a'+i)), Platform: domain.PlatformReddit, Score: float64(100 - i)}
	}
	return aggregator.Result{
		Query:       q,
		Posts:       posts,
		Sources:     []aggregator.SourceReport{{Platform: domain.PlatformReddit, Count: n}},
		GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewAggregatedEvent(t *testing.T) {
	ev := NewAggregatedEvent(sampleResult(t, 8))
	if ev.Count != 8 || len(ev.Top) != topN {
		t.Errorf("Count=%d Top=%d", ev.Count, len(ev.Top))
	}
	if ev.Query != "golang" || ev.Platform != "reddit,devto" || ev.Limit != 10 || ev.MinEngagement != 5 {
		t.Errorf("event query fields = %+v", ev)
	}
	if ev.Top[0].ID != "reddit:a" || ev.Top[0].Score != 100 {
		t.Errorf("Top[0] = %+v", ev.Top[0])
	}

	empty := NewAggregatedEvent(sampleResult(t, 0))
	if empty.Top == nil || len(empty.Top) != 0 {
		t.Errorf("Top for empty result = %#v", empty.Top)
	}
}

func TestNotifyPublishes(t *testing.T) {
	c := &captured{}
	p := newPublisher(c, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.Notify(context.Background(), sampleResult(t, 2)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(c.msgs) != 1 {
		t.Fatalf("published %d messages", len(c.msgs))
	}
	m := c.msgs[0]
	if m.Subject != DefaultSubject {
		t.Errorf("subject = %q", m.Subject)
	}
	if m.Header.Get(nats.MsgIdHdr) == "" {
		t.Error("message id header missing")
	}
	var ev AggregatedEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.Count != 2 || len(ev.Sources) != 1 {
		t.Errorf("decoded event = %+v", ev)
	}
}

func TestNotifyWrapsPublishError(t *testing.T) {
	sentinel := errors.New("no responders")
	p := newPublisher(&captured{err: sentinel}, "custom.subject", nil)
	err := p.Notify(context.Background(), sampleResult(t, 1))
	if !errors.Is(err, sentinel) {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestConnectFailsFast(t *testing.T) {
	start := time.Now()
	_, err := Connect("nats://127.0.0.1:1", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("Connect() to a closed port succeeded")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Connect() took %v", time.Since(start))
	}
}
