package middleware

import (
	"net/http"

	"github.com/G1D0/flowgate/internal/health"
	"github.com/G1D0/flowgate/internal/lb"
	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/pkg/compose"
)

// Balance picks the upstream for the call and stores it in Request.Backend.
// Only backends pool reports healthy are picked; a nil pool picks among all.
// Balancers that count in-flight calls are released when the chain unwinds.
// m may be nil.
func Balance(b lb.Balancer, pool *health.Pool, key KeyFunc, m *observe.Metrics) Middleware {
	if key == nil {
		key = ByClientIP
	}
	release := func(string) {}
	if r, ok := b.(lb.Releaser); ok {
		release = r.Done
	}

	return func(c *Context, next compose.Next) error {
		req := c.Req()
		backend := b.Next(key(req), pool.Eligible())
		if backend == "" {
			respond(c, proxy.Text(http.StatusServiceUnavailable, "no backend available"))
			return nil
		}
		defer release(backend)

		req.Backend = backend
		if m != nil {
			g := m.ActiveConns.WithLabelValues(backend)
			g.Inc()
			defer g.Dec()
		}
		return next()
	}
}
