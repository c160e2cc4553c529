// Package ratelimit provides the admission algorithms behind the gateway's
// rate-limit middleware.
package ratelimit

import (
	"fmt"
	"time"
)

// Limiter admits or rejects one call. When it rejects, retryAfter estimates
// how long the caller should wait; zero means unknown.
type Limiter interface {
	Allow() (ok bool, retryAfter time.Duration)
}

// Strategy names a Limiter algorithm in configuration.
type Strategy string

const (
	StrategyTokenBucket   Strategy = "token_bucket"
	StrategySlidingWindow Strategy = "sliding_window"
)

// Config describes one limiter per key.
type Config struct {
	Strategy Strategy `yaml:"strategy"`
	// token bucket
	Capacity int     `yaml:"capacity"`
	Rate     float64 `yaml:"rate"`
	// sliding window
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
	// idle keys are dropped after this long
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Factory returns a constructor for fresh limiters described by cfg.
func (cfg Config) Factory() (func() Limiter, error) {
	switch cfg.Strategy {
	case "", StrategyTokenBucket:
		if cfg.Capacity <= 0 {
			return nil, fmt.Errorf("token bucket: capacity must be positive")
		}
		return func() Limiter { return NewTokenBucket(cfg.Capacity, cfg.Rate) }, nil
	case StrategySlidingWindow:
		if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
			return nil, fmt.Errorf("sliding window: max_requests and window must be positive")
		}
		return func() Limiter { return NewSlidingWindow(cfg.MaxRequests, cfg.Window) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", cfg.Strategy)
	}
}
