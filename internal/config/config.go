// Package config loads runtime settings from defaults, an optional YAML file
// and the environment (including a .env file), in that order of precedence.
package config

import "time"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Collector  CollectorConfig  `koanf:"collector"`
	Twitter    TwitterConfig    `koanf:"twitter"`
	Reddit     RedditConfig     `koanf:"reddit"`
	DevTo      DevToConfig      `koanf:"devto"`
	Threads    ThreadsConfig    `koanf:"threads"`
	Cache      CacheConfig      `koanf:"cache"`
	Aggregator AggregatorConfig `koanf:"aggregator"`
	Scoring    ScoringConfig    `koanf:"scoring"`
	NATS       NATSConfig       `koanf:"nats"`
	Warmer     WarmerConfig     `koanf:"warmer"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per IP, 0 disables
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CollectorConfig struct {
	Mode            string        `koanf:"mode"` // live or mock
	UserAgent       string        `koanf:"user_agent"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
	MockLatency     time.Duration `koanf:"mock_latency"`
}

type TwitterConfig struct {
	NitterInstances []string      `koanf:"nitter_instances"`
	APIBase         string        `koanf:"api_base"`
	GuestBearer     string        `koanf:"guest_bearer"`
	BridgeCommand   string        `koanf:"bridge_command"`
	BridgeUsername  string        `koanf:"bridge_username"`
	BridgeEmail     string        `koanf:"bridge_email"`
	BridgePassword  string        `koanf:"bridge_password"`
	BridgeTimeout   time.Duration `koanf:"bridge_timeout"`
}

type RedditConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	Username     string   `koanf:"username"`
	Password     string   `koanf:"password"`
	Hosts        []string `koanf:"hosts"`
	RSSHost      string   `koanf:"rss_host"`
}

type DevToConfig struct {
	Base string `koanf:"base"`
}

type ThreadsConfig struct {
	Base    string   `koanf:"base"`
	DocID   string   `koanf:"doc_id"`
	Proxies []string `koanf:"proxies"`
}

type CacheConfig struct {
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	RetryAfter    time.Duration `koanf:"retry_after"`
}

type AggregatorConfig struct {
	TwitterBudget time.Duration `koanf:"twitter_budget"`
	RedditBudget  time.Duration `koanf:"reddit_budget"`
	DevToBudget   time.Duration `koanf:"devto_budget"`
	ThreadsBudget time.Duration `koanf:"threads_budget"`
}

type ScoringConfig struct {
	CommentWeight float64 `koanf:"comment_weight"`
	RepostWeight  float64 `koanf:"repost_weight"`
	Decay         float64 `koanf:"decay"`
}

type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type WarmerConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Watchlist  string        `koanf:"watchlist"`
	Interval   time.Duration `koanf:"interval"`
	Workers    int           `koanf:"workers"`
	ExportPath string        `koanf:"export_path"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Collector: CollectorConfig{
			Mode:            "live",
			UserAgent:       "viralscout/1.0 (content aggregation)",
			RequestTimeout:  10 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: time.Minute,
			MockLatency:     200 * time.Millisecond,
		},
		Twitter: TwitterConfig{
			NitterInstances: []string{"https://nitter.net", "https://nitter.privacydev.net", "https://nitter.poast.org"},
			APIBase:         "https://api.twitter.com",
			BridgeTimeout:   30 * time.Second,
		},
		Reddit: RedditConfig{
			Hosts:   []string{"https://www.reddit.com", "https://old.reddit.com"},
			RSSHost: "https://www.reddit.com",
		},
		DevTo:   DevToConfig{Base: "https://dev.to"},
		Threads: ThreadsConfig{Base: "https://www.threads.net"},
		Cache: CacheConfig{
			TTL:           6 * time.Hour,
			SweepInterval: 5 * time.Minute,
			RetryAfter:    30 * time.Second,
		},
		Aggregator: AggregatorConfig{
			TwitterBudget: 20 * time.Second,
			RedditBudget:  15 * time.Second,
			DevToBudget:   15 * time.Second,
			ThreadsBudget: 25 * time.Second,
		},
		Scoring: ScoringConfig{CommentWeight: 2, RepostWeight: 3, Decay: 0.8},
		NATS:    NATSConfig{Subject: "viral.aggregated"},
		Warmer: WarmerConfig{
			Watchlist:  "input/watchlist.csv",
			Interval:   30 * time.Minute,
			Workers:    2,
			ExportPath: "data/current.json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}
