// Package events publishes aggregation summaries to NATS.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/qepting91/viralscout/internal/aggregator"
	"github.com/qepting91/viralscout/internal/domain"
)

const DefaultSubject = "viral.aggregated"

// topN is how many ranked posts are carried in each event.
const topN = 5

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// AggregatedEvent is the payload published after every aggregation.
type AggregatedEvent struct {
	Query         string                    `json:"query"`
	Platform      string                    `json:"platform"`
	Limit         int                       `json:"limit"`
	MinEngagement int                       `json:"minEngagement"`
	Count         int                       `json:"count"`
	Sources       []aggregator.SourceReport `json:"sources"`
	Top           []TopPost                 `json:"top"`
	GeneratedAt   time.Time                 `json:"generatedAt"`
}

type TopPost struct {
	ID       string          `json:"id"`
	Platform domain.Platform `json:"platform"`
	URL      string          `json:"url"`
	Score    float64         `json:"score"`
}

type NatsPublisher struct {
	nc      msgPublisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNatsPublisher(nc *nats.Conn, subject string, logger *slog.Logger) *NatsPublisher {
	p := newPublisher(nc, subject, logger)
	p.conn = nc
	return p
}

func newPublisher(nc msgPublisher, subject string, logger *slog.Logger) *NatsPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NatsPublisher{nc: nc, subject: subject, logger: logger}
}

// Connect dials url and returns a publisher on subject.
func Connect(url, subject string, logger *slog.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("viralscout"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "subject", subject)
	return NewNatsPublisher(nc, subject, logger), nil
}

func NewAggregatedEvent(r aggregator.Result) AggregatedEvent {
	ev := AggregatedEvent{
		Query:         r.Query.Text,
		Platform:      r.Query.Platform,
		Limit:         r.Query.Limit,
		MinEngagement: r.Query.MinEngagement,
		Count:         len(r.Posts),
		Sources:       r.Sources,
		Top:           make([]TopPost, 0, min(topN, len(r.Posts))),
		GeneratedAt:   r.GeneratedAt,
	}
	for _, p := range r.Posts[:min(topN, len(r.Posts))] {
		ev.Top = append(ev.Top, TopPost{ID: p.ID, Platform: p.Platform, URL: p.URL, Score: p.Score})
	}
	return ev
}

// Notify publishes the summary of r. It satisfies aggregator.Notifier.
func (p *NatsPublisher) Notify(_ context.Context, r aggregator.Result) error {
	data, err := json.Marshal(NewAggregatedEvent(r))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.logger.Debug("Published aggregation event", "subject", p.subject, "query", r.Query.Text, "count", len(r.Posts))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
