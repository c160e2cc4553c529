package middleware

import (
	"log/slog"
	"time"

	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/pkg/compose"
)

// Logging logs each call as structured JSON and makes a call-scoped logger
// available to later middleware through observe.LoggerFrom.
func Logging(logger *slog.Logger) Middleware {
	return func(c *Context, next compose.Next) error {
		start := time.Now()
		req := c.Req()
		log := observe.CallLogger(logger, req.Route, req.Method, req.Path, req.ClientIP,
			observe.TraceIDFrom(c.Context()))
		c.SetContext(observe.WithLogger(c.Context(), log))

		err := next()

		attrs := []any{
			"status", status(c),
			"backend", req.Backend,
			"latency_ms", time.Since(start).Milliseconds(),
			"call_id", c.ID(),
		}
		if err != nil {
			log.Error("call failed", append(attrs, "error", err)...)
			return err
		}
		log.Info("call completed", attrs...)
		return nil
	}
}
