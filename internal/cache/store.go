// Package cache stores adapter results keyed by (platform, query, limit).
// A shared Redis backend is used when reachable; otherwise the layer falls
// back to an in-process TTL map without surfacing errors to callers.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qepting91/viralscout/internal/domain"
)

// Prefix namespaces every key this package writes.
const Prefix = "viral:"

// Store is a byte-oriented TTL key/value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)
	// Flush removes every key under Prefix.
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var keyReplacer = strings.NewReplacer("*", "_", "?", "_", "[", "_", "]", "_", "\\", "_", "/", "_", ":", "_")

// Key builds the cache key for one adapter result. Glob metacharacters are
// neutralized so pattern deletes only ever match on structure.
func Key(p domain.Platform, q domain.Query, limit int) string {
	text := keyReplacer.Replace(q.Normalized())
	text = strings.ReplaceAll(text, " ", "+")
	return fmt.Sprintf("%s%s:%s:%d", Prefix, p, text, limit)
}

// namespaced prefixes a user-supplied pattern when it lacks the namespace.
func namespaced(pattern string) string {
	if strings.HasPrefix(pattern, Prefix) {
		return pattern
	}
	return Prefix + pattern
}
