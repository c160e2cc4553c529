package middleware

import (
	"net/http"

	"github.com/G1D0/flowgate/internal/circuitbreaker"
	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/pkg/compose"
)

// CircuitBreaker rejects calls with 503 while the selected backend's circuit
// is open, and feeds every outcome back into the breaker. It must run after
// Balance. Errors and 5xx responses count as failures.
func CircuitBreaker(cb *circuitbreaker.PerBackend) Middleware {
	return func(c *Context, next compose.Next) error {
		backend := c.Req().Backend
		if !cb.Allow(backend) {
			respond(c, proxy.Text(http.StatusServiceUnavailable, "service unavailable"))
			return nil
		}

		err := next()
		if err != nil || status(c) >= 500 {
			cb.RecordFailure(backend)
		} else {
			cb.RecordSuccess(backend)
		}
		return err
	}
}
