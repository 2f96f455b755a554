package collector

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/config"
	"github.com/qepting91/viralscout/internal/domain"
)

// NewAdapters builds one adapter per platform, in the fixed platform order,
// according to the collector mode.
func NewAdapters(cfg *config.Config, logger *slog.Logger) ([]*Adapter, error) {
	switch cfg.Collector.Mode {
	case "mock":
		var adapters []*Adapter
		for _, p := range domain.AllPlatforms() {
			chain := NewChain(p, logger, MockStep(p, cfg.Collector.MockLatency))
			adapters = append(adapters, NewAdapter(p, chain, logger))
		}
		return adapters, nil
	case "live":
		b := &builder{cfg: cfg, logger: logger}
		return []*Adapter{
			b.adapter(domain.PlatformTwitter, b.twitterSteps()),
			b.adapter(domain.PlatformReddit, b.redditSteps()),
			b.adapter(domain.PlatformDevTo, b.devtoSteps()),
			b.adapter(domain.PlatformThreads, b.threadsSteps()),
		}, nil
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'live' or 'mock')", cfg.Collector.Mode)
	}
}

// NewBridge returns the Twitter helper-process strategy, or nil when no
// command is configured.
func NewBridge(cfg *config.Config) *BridgeStrategy {
	cmd := strings.Fields(cfg.Twitter.BridgeCommand)
	if len(cmd) == 0 {
		return nil
	}
	return NewBridgeStrategy(BridgeConfig{
		Command:  cmd,
		Username: cfg.Twitter.BridgeUsername,
		Email:    cfg.Twitter.BridgeEmail,
		Password: cfg.Twitter.BridgePassword,
		Timeout:  cfg.Twitter.BridgeTimeout,
	})
}

type builder struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (b *builder) adapter(p domain.Platform, steps []Step) *Adapter {
	for i := range steps {
		steps[i].Strategy = WithBreaker(steps[i].Strategy, BreakerConfig{
			ConsecutiveFailures: uint32(max(b.cfg.Collector.BreakerFailures, 1)),
			OpenTimeout:         b.cfg.Collector.BreakerCooldown,
		}, b.logger)
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Strategy.Name()
	}
	b.logger.Info("Strategy chain built", "platform", string(p), "strategies", names)
	return NewAdapter(p, NewChain(p, b.logger, steps...), b.logger)
}

// source gives each strategy its own client and limiter.
func (b *builder) source(every time.Duration) httpSource {
	return newHTTPSource(b.cfg.Collector.RequestTimeout, every, b.cfg.Collector.UserAgent)
}

func (b *builder) twitterSteps() []Step {
	tw := b.cfg.Twitter
	var steps []Step
	for _, inst := range tw.NitterInstances {
		steps = append(steps, NitterFeed(inst, b.source(time.Second)))
	}
	if tw.GuestBearer != "" {
		steps = append(steps, Step{
			Strategy:  NewGuestTokenStrategy(tw.APIBase, tw.GuestBearer, b.source(2*time.Second)),
			Normalize: normalizeTweet,
		})
	}
	if bridge := NewBridge(b.cfg); bridge != nil {
		steps = append(steps, Step{Strategy: bridge, Normalize: normalizeTweet})
	}
	return steps
}

func (b *builder) redditSteps() []Step {
	rd := b.cfg.Reddit
	var steps []Step
	creds := RedditCredentials{
		ClientID:     rd.ClientID,
		ClientSecret: rd.ClientSecret,
		Username:     rd.Username,
		Password:     rd.Password,
	}
	if creds.Complete() {
		api, err := NewRedditAPIStrategy(creds, b.cfg.Collector.UserAgent, b.cfg.Collector.RequestTimeout)
		if err != nil {
			b.logger.Warn("Reddit API strategy disabled", "err", err)
		} else {
			steps = append(steps, Step{Strategy: api, Normalize: normalizeRedditListing})
		}
	}
	for _, host := range rd.Hosts {
		// Public JSON Limit: 1 req / 2 seconds (Stricter)
		steps = append(steps, Step{
			Strategy:  NewRedditJSONStrategy(host, b.source(2*time.Second)),
			Normalize: normalizeRedditListing,
		})
	}
	if rd.RSSHost != "" {
		steps = append(steps, RedditFeed(rd.RSSHost, b.source(2*time.Second)))
	}
	return steps
}

func (b *builder) devtoSteps() []Step {
	base := b.cfg.DevTo.Base
	return []Step{
		{Strategy: NewDevToArticlesStrategy(base, b.source(300*time.Millisecond)), Normalize: normalizeDevToArticle},
		{Strategy: NewDevToSearchStrategy(base, b.source(300*time.Millisecond)), Normalize: normalizeDevToArticle},
		DevToFeed(base, b.source(time.Second)),
	}
}

func (b *builder) threadsSteps() []Step {
	th := b.cfg.Threads
	var steps []Step
	for _, proxy := range th.Proxies {
		steps = append(steps, Step{
			Strategy:  NewThreadsProxyStrategy(proxy, b.source(time.Second)),
			Normalize: normalizeThreadsProxy,
		})
	}
	if th.DocID != "" {
		steps = append(steps, Step{
			Strategy:  NewThreadsGraphQLStrategy(th.Base, th.DocID, b.source(2*time.Second)),
			Normalize: normalizeThreadsGraphQL,
		})
	}
	return steps
}
