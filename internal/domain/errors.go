package domain

import "errors"

var (
	// ErrInvalidQuery is the only error surfaced to callers of an aggregation.
	ErrInvalidQuery = errors.New("invalid query")

	ErrStrategyFailed     = errors.New("strategy failed")
	ErrBlocked            = errors.New("blocked by upstream")
	ErrPlatformExhausted  = errors.New("all strategies exhausted")
	ErrTimeoutExceeded    = errors.New("platform budget exceeded")
	ErrCacheUnavailable   = errors.New("cache backend unavailable")
	ErrStrategyNotEnabled = errors.New("strategy not configured")
)
