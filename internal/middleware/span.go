package middleware

import (
	"github.com/G1D0/flowgate/pkg/compose"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps the rest of the chain in an OpenTelemetry span.
func Span(tracer trace.Tracer) Middleware {
	return func(c *Context, next compose.Next) error {
		req := c.Req()
		ctx, span := tracer.Start(c.Context(), "flowgate "+req.Route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", req.Path),
				attribute.String("client.address", req.ClientIP),
				attribute.String("flowgate.call_id", c.ID()),
			))
		defer span.End()
		c.SetContext(ctx)

		err := next()

		if req.Backend != "" {
			span.SetAttributes(attribute.String("flowgate.backend", req.Backend))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		code := status(c)
		span.SetAttributes(attribute.Int("http.response.status_code", code))
		if code >= 500 {
			span.SetStatus(codes.Error, "upstream error")
		}
		return nil
	}
}
