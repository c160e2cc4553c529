package middleware

import (
	"github.com/G1D0/flowgate/internal/health"
	"github.com/G1D0/flowgate/pkg/compose"
)

// PassiveHealth records the outcome of each call against its backend. It
// must run after Balance.
func PassiveHealth(pc *health.PassiveChecker) Middleware {
	return func(c *Context, next compose.Next) error {
		err := next()
		backend := c.Req().Backend
		if backend == "" {
			return err
		}
		if err != nil || status(c) >= 500 {
			pc.RecordFailure(backend)
		} else {
			pc.RecordSuccess(backend)
		}
		return err
	}
}
