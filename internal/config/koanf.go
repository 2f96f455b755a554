package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Load reads .env (if present), then layers defaults < YAML file < environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(findConfigFile())
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"twitter.nitter_instances",
	"reddit.hosts",
	"threads.proxies",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables onto config paths. Unlisted
// variables are ignored.
var envMappings = map[string]string{
	"port":           "server.port",
	"http_host":      "server.host",
	"cors_origins":   "server.cors_origins",
	"api_rate_limit": "server.rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",

	"collector_mode":    "collector.mode",
	"user_agent":        "collector.user_agent",
	"reddit_user_agent": "collector.user_agent",
	"request_timeout":   "collector.request_timeout",
	"breaker_failures":  "collector.breaker_failures",
	"breaker_cooldown":  "collector.breaker_cooldown",

	"nitter_instances":       "twitter.nitter_instances",
	"twitter_api_base":       "twitter.api_base",
	"twitter_guest_bearer":   "twitter.guest_bearer",
	"twitter_bridge_command": "twitter.bridge_command",
	"twitter_username":       "twitter.bridge_username",
	"twitter_email":          "twitter.bridge_email",
	"twitter_password":       "twitter.bridge_password",
	"twitter_bridge_timeout": "twitter.bridge_timeout",

	"reddit_client_id":     "reddit.client_id",
	"reddit_client_secret": "reddit.client_secret",
	"reddit_username":      "reddit.username",
	"reddit_password":      "reddit.password",
	"reddit_hosts":         "reddit.hosts",

	"devto_base": "devto.base",

	"threads_base":    "threads.base",
	"threads_doc_id":  "threads.doc_id",
	"threads_proxies": "threads.proxies",

	"redis_addr":           "cache.redis_addr",
	"redis_password":       "cache.redis_password",
	"redis_db":             "cache.redis_db",
	"cache_ttl":            "cache.ttl",
	"cache_sweep_interval": "cache.sweep_interval",

	"twitter_budget": "aggregator.twitter_budget",
	"reddit_budget":  "aggregator.reddit_budget",
	"devto_budget":   "aggregator.devto_budget",
	"threads_budget": "aggregator.threads_budget",

	"score_comment_weight": "scoring.comment_weight",
	"score_repost_weight":  "scoring.repost_weight",
	"score_decay":          "scoring.decay",

	"nats_url":     "nats.url",
	"nats_subject": "nats.subject",

	"warmer_enabled":  "warmer.enabled",
	"watchlist_path":  "warmer.watchlist",
	"warmer_interval": "warmer.interval",
	"warmer_workers":  "warmer.workers",
	"export_path":     "warmer.export_path",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
