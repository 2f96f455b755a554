package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 6*time.Hour {
		t.Errorf("TTL = %v, want 6h", cfg.Cache.TTL)
	}
	if cfg.Scoring.Decay != 0.8 {
		t.Errorf("Decay = %v, want 0.8", cfg.Scoring.Decay)
	}
	if len(cfg.Reddit.Hosts) != 2 {
		t.Errorf("Reddit.Hosts = %v, want two hosts", cfg.Reddit.Hosts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COLLECTOR_MODE", "mock")
	t.Setenv("REDDIT_HOSTS", "https://old.reddit.com, https://mirror.example")
	t.Setenv("THREADS_BUDGET", "5s")
	t.Setenv("SCORE_DECAY", "1.1")
	t.Setenv("SOME_UNRELATED_VAR", "x")

	cfg, err := load("")
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Collector.Mode != "mock" {
		t.Errorf("Mode = %q, want mock", cfg.Collector.Mode)
	}
	want := []string{"https://old.reddit.com", "https://mirror.example"}
	if !reflect.DeepEqual(cfg.Reddit.Hosts, want) {
		t.Errorf("Hosts = %v, want %v", cfg.Reddit.Hosts, want)
	}
	if cfg.Aggregator.ThreadsBudget != 5*time.Second {
		t.Errorf("ThreadsBudget = %v, want 5s", cfg.Aggregator.ThreadsBudget)
	}
	if cfg.Scoring.Decay != 1.1 {
		t.Errorf("Decay = %v, want 1.1", cfg.Scoring.Decay)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
cache:
  redis_addr: "localhost:6379"
  ttl: 1h
threads:
  proxies:
    - https://proxy.example
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if len(cfg.Threads.Proxies) != 1 {
		t.Errorf("Proxies = %v", cfg.Threads.Proxies)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Collector.Mode = "api" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero budget", func(c *Config) { c.Aggregator.RedditBudget = 0 }},
		{"negative weight", func(c *Config) { c.Scoring.RepostWeight = -1 }},
		{"zero decay", func(c *Config) { c.Scoring.Decay = 0 }},
		{"bad url", func(c *Config) { c.Threads.Proxies = []string{"ftp://nope"} }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
