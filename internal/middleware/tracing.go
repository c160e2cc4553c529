package middleware

import (
	"net/http"

	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/pkg/compose"
)

// Tracing propagates the caller's X-Request-ID or assigns a new one. The ID
// is put in the call context, forwarded upstream and echoed on the response.
func Tracing() Middleware {
	return func(c *Context, next compose.Next) error {
		req := c.Req()
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		traceID := observe.TraceIDOrNew(req.Header.Get(observe.TraceHeader))
		req.Header.Set(observe.TraceHeader, traceID)
		c.SetContext(observe.WithTraceID(c.Context(), traceID))

		err := next()

		if res := c.Res(); res != nil {
			if res.Header == nil {
				res.Header = make(http.Header)
			}
			res.Header.Set(observe.TraceHeader, traceID)
		}
		return err
	}
}
