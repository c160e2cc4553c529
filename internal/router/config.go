// Package router turns gateway configuration into a table of flow scopes and
// matches incoming requests against it.
package router

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/G1D0/flowgate/internal/circuitbreaker"
	"github.com/G1D0/flowgate/internal/health"
	"github.com/G1D0/flowgate/internal/lb"
	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/internal/ratelimit"
	"github.com/G1D0/flowgate/pkg/flow"
	"gopkg.in/yaml.v3"
)

// Names accepted in the global middleware list.
const (
	MiddlewareTracing = "tracing"
	MiddlewareLogging = "logging"
	MiddlewareMetrics = "metrics"
	MiddlewareSpan    = "span"
)

var knownMiddleware = []string{MiddlewareTracing, MiddlewareLogging, MiddlewareMetrics, MiddlewareSpan}

// RouteConfig defines a single route in the YAML config.
type RouteConfig struct {
	Name     string            `yaml:"name"`
	Path     string            `yaml:"path"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Backends []string          `yaml:"backends"`

	Balancer lb.Strategy    `yaml:"balancer,omitempty"`
	Weights  map[string]int `yaml:"weights,omitempty"`
	// AffinityHeader keys consistent hashing; the client IP is used without it.
	AffinityHeader string `yaml:"affinity_header,omitempty"`

	RateLimit      *RateLimitConfig       `yaml:"rate_limit,omitempty"`
	CircuitBreaker *circuitbreaker.Config `yaml:"circuit_breaker,omitempty"`
	Health         *HealthConfig          `yaml:"health,omitempty"`
	RequestHeaders map[string]string      `yaml:"request_headers,omitempty"`
}

// RateLimitConfig adds placement and keying to a limiter config.
type RateLimitConfig struct {
	ratelimit.Config `yaml:",inline"`
	// KeyHeader limits per header value instead of per client IP.
	KeyHeader string `yaml:"key_header,omitempty"`
	// Position is prefix to reject before the global middleware runs.
	// Default suffix.
	Position *flow.Position `yaml:"position,omitempty"`
}

// HealthConfig enables active probing, passive checking, or both.
type HealthConfig struct {
	Active  *health.ActiveConfig  `yaml:"active,omitempty"`
	Passive *health.PassiveConfig `yaml:"passive,omitempty"`
}

// Config is the top-level YAML configuration.
type Config struct {
	Listen          string                `yaml:"listen"`
	MetricsListen   string                `yaml:"metrics_listen"`
	LogLevel        string                `yaml:"log_level"`
	DrainTimeout    time.Duration         `yaml:"drain_timeout"`
	UpstreamTimeout time.Duration         `yaml:"upstream_timeout"`
	Tracing         observe.TracingConfig `yaml:"tracing"`
	// Middleware is the global chain, outermost first.
	Middleware []string      `yaml:"middleware"`
	Routes     []RouteConfig `yaml:"routes"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML bytes into a Config and fills defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 15 * time.Second
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}
	for i := range cfg.Routes {
		if cfg.Routes[i].Name == "" {
			cfg.Routes[i].Name = cfg.Routes[i].Path
		}
	}
}

// validateConfig checks that the config is semantically valid.
func validateConfig(cfg *Config) error {
	if len(cfg.Routes) == 0 {
		return fmt.Errorf("config must have at least one route")
	}
	if _, err := observe.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	for _, name := range cfg.Middleware {
		if !slices.Contains(knownMiddleware, name) {
			return fmt.Errorf("unknown middleware %q", name)
		}
	}

	for i, route := range cfg.Routes {
		if route.Path == "" {
			return fmt.Errorf("route %d: path cannot be empty", i)
		}
		if len(route.Backends) == 0 {
			return fmt.Errorf("route %d (%s): must have at least one backend", i, route.Path)
		}
		switch route.Balancer {
		case "", lb.StrategyRoundRobin, lb.StrategyWeighted, lb.StrategyLeastConn, lb.StrategyConsistentHash:
		default:
			return fmt.Errorf("route %d (%s): unknown balancer %q", i, route.Path, route.Balancer)
		}
		if rl := route.RateLimit; rl != nil {
			if _, err := rl.Factory(); err != nil {
				return fmt.Errorf("route %d (%s): %w", i, route.Path, err)
			}
		}
	}
	return nil
}

// StartupChanges names the fields that differ between old and cur but are
// only read at process start (listeners, logging, tracing). A reload applies
// routes, middleware and the upstream timeout; these need a restart.
func StartupChanges(old, cur *Config) []string {
	var changed []string
	if old.Listen != cur.Listen {
		changed = append(changed, "listen")
	}
	if old.MetricsListen != cur.MetricsListen {
		changed = append(changed, "metrics_listen")
	}
	if old.LogLevel != cur.LogLevel {
		changed = append(changed, "log_level")
	}
	if old.DrainTimeout != cur.DrainTimeout {
		changed = append(changed, "drain_timeout")
	}
	if old.Tracing != cur.Tracing {
		changed = append(changed, "tracing")
	}
	return changed
}
