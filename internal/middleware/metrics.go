package middleware

import (
	"strconv"
	"time"

	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/pkg/compose"
)

// Metrics records call counts, durations and errors per route.
func Metrics(m *observe.Metrics) Middleware {
	return func(c *Context, next compose.Next) error {
		start := time.Now()
		err := next()

		route := c.Req().Route
		m.CallDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if err != nil {
			m.CallErrors.WithLabelValues(route).Inc()
			return err
		}
		m.CallsTotal.WithLabelValues(route, strconv.Itoa(status(c)), c.Req().Method).Inc()
		return nil
	}
}
