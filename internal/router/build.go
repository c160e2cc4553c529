package router

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/G1D0/flowgate/internal/circuitbreaker"
	"github.com/G1D0/flowgate/internal/health"
	"github.com/G1D0/flowgate/internal/lb"
	"github.com/G1D0/flowgate/internal/middleware"
	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/internal/ratelimit"
	"github.com/G1D0/flowgate/pkg/flow"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Deps are the shared services a route table is built with.
type Deps struct {
	Logger  *slog.Logger
	Metrics *observe.Metrics // nil disables metrics middleware and gauges
	Tracer  trace.Tracer     // nil means no-op spans
	Fetcher *proxy.Fetcher   // nil builds one from the config's upstream timeout
}

// Build compiles cfg into a Router. The global middleware list is registered
// on one flow controller whose action forwards to the selected backend; every
// route gets its own scope of that controller with the route's middleware
// appended (or, for a prefix rate limit, prepended).
func Build(cfg *Config, deps Deps) (*Router, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(observe.TracerName)
	}
	if deps.Fetcher == nil {
		deps.Fetcher = proxy.NewFetcher(cfg.UpstreamTimeout)
	}

	ctrl, err := flow.New[*proxy.Request, *proxy.Response](deps.Fetcher.Fetch,
		flow.WithName("flowgate"), flow.WithLogger(deps.Logger))
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.Middleware {
		m, err := globalMiddleware(name, deps)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if err := ctrl.Register(m); err != nil {
			return nil, err
		}
	}

	var closers []io.Closer
	routes := make([]Route, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		scope := ctrl.CreateScope()
		cs, err := buildRoute(scope, rc, deps)
		closers = append(closers, cs...)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, fmt.Errorf("route %s: %w", rc.Name, err)
		}
		routes = append(routes, Route{
			Name:     rc.Name,
			Path:     rc.Path,
			Headers:  rc.Headers,
			Backends: rc.Backends,
			Scope:    scope,
		})
	}
	return newRouter(routes, closers), nil
}

func globalMiddleware(name string, deps Deps) (middleware.Middleware, error) {
	switch name {
	case MiddlewareTracing:
		return middleware.Tracing(), nil
	case MiddlewareLogging:
		return middleware.Logging(deps.Logger), nil
	case MiddlewareMetrics:
		if deps.Metrics == nil {
			return nil, nil
		}
		return middleware.Metrics(deps.Metrics), nil
	case MiddlewareSpan:
		return middleware.Span(deps.Tracer), nil
	default:
		return nil, fmt.Errorf("unknown middleware %q", name)
	}
}

// buildRoute registers the route's middleware on scope in call order:
// rate limit, request headers, balance, circuit breaker, passive health.
func buildRoute(scope *Scope, rc RouteConfig, deps Deps) ([]io.Closer, error) {
	var closers []io.Closer
	m := deps.Metrics

	if rl := rc.RateLimit; rl != nil {
		factory, err := rl.Factory()
		if err != nil {
			return closers, err
		}
		limiter := ratelimit.NewPerKey(factory, rl.StaleAfter)
		closers = append(closers, limiter)

		var key middleware.KeyFunc
		if rl.KeyHeader != "" {
			key = middleware.ByHeader(rl.KeyHeader)
		}
		pos := flow.Suffix
		if rl.Position != nil {
			pos = *rl.Position
		}
		if err := scope.Register(pos, middleware.RateLimit(limiter, key, m)); err != nil {
			return closers, err
		}
	}

	if len(rc.RequestHeaders) > 0 {
		if err := scope.Register(flow.Suffix, middleware.SetHeaders(rc.RequestHeaders)); err != nil {
			return closers, err
		}
	}

	backends := make([]lb.Backend, len(rc.Backends))
	for i, addr := range rc.Backends {
		backends[i] = lb.Backend{Addr: addr, Weight: rc.Weights[addr]}
	}
	balancer, err := lb.New(rc.Balancer, backends)
	if err != nil {
		return closers, err
	}

	var checkers health.Combined
	var passive *health.PassiveChecker
	if hc := rc.Health; hc != nil {
		if hc.Active != nil {
			active := health.NewActiveChecker(rc.Backends, *hc.Active, func(backend string, healthy bool) {
				deps.Logger.Warn("backend health changed", "route", rc.Name, "backend", backend, "healthy", healthy)
				if m != nil {
					m.BackendHealthy.WithLabelValues(backend).Set(boolGauge(healthy))
				}
			})
			closers = append(closers, active)
			checkers = append(checkers, active)
		}
		if hc.Passive != nil {
			passive = health.NewPassiveChecker(*hc.Passive)
			checkers = append(checkers, passive)
		}
		if m != nil {
			for _, b := range rc.Backends {
				m.BackendHealthy.WithLabelValues(b).Set(1)
			}
		}
	}
	var pool *health.Pool
	if len(checkers) > 0 {
		pool = health.NewPool(rc.Backends, checkers)
	}

	var key middleware.KeyFunc
	if rc.AffinityHeader != "" {
		key = middleware.ByHeader(rc.AffinityHeader)
	}
	if err := scope.Register(flow.Suffix, middleware.Balance(balancer, pool, key, m)); err != nil {
		return closers, err
	}

	if cbc := rc.CircuitBreaker; cbc != nil {
		cb := circuitbreaker.NewPerBackend(*cbc, func(backend string, s circuitbreaker.State) {
			deps.Logger.Warn("circuit state changed", "route", rc.Name, "backend", backend, "state", s.String())
			if m != nil {
				m.CircuitState.WithLabelValues(backend).Set(float64(s))
			}
		})
		if err := scope.Register(flow.Suffix, middleware.CircuitBreaker(cb)); err != nil {
			return closers, err
		}
	}

	if passive != nil {
		if err := scope.Register(flow.Suffix, middleware.PassiveHealth(passive)); err != nil {
			return closers, err
		}
	}
	return closers, nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
