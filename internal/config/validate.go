package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Collector.Mode {
	case "live", "mock":
	default:
		return fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'live' or 'mock')", c.Collector.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Collector.RequestTimeout <= 0 {
		return fmt.Errorf("collector.request_timeout must be positive")
	}

	a := c.Aggregator
	if a.TwitterBudget <= 0 || a.RedditBudget <= 0 || a.DevToBudget <= 0 || a.ThreadsBudget <= 0 {
		return fmt.Errorf("platform budgets must be positive")
	}

	s := c.Scoring
	if s.CommentWeight < 0 || s.RepostWeight < 0 {
		return fmt.Errorf("scoring weights must not be negative")
	}
	if s.Decay <= 0 {
		return fmt.Errorf("scoring.decay must be positive")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	for _, raw := range c.allBaseURLs() {
		if err := validateHTTPURL(raw); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) allBaseURLs() []string {
	urls := []string{c.Twitter.APIBase, c.DevTo.Base, c.Threads.Base, c.Reddit.RSSHost}
	urls = append(urls, c.Twitter.NitterInstances...)
	urls = append(urls, c.Reddit.Hosts...)
	urls = append(urls, c.Threads.Proxies...)
	return urls
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
