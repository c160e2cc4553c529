package observe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TraceHeader is the standard header for request trace IDs.
	TraceHeader = "X-Request-ID"

	// TracerName identifies spans emitted by the gateway.
	TracerName = "github.com/G1D0/flowgate"
)

// traceKey is the context key for the trace ID.
type traceKey struct{}

// GenerateTraceID returns a random 32-character hex ID.
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TraceIDOrNew returns id, or a fresh ID when id is empty.
func TraceIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return GenerateTraceID()
}

// WithTraceID stores the trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFrom retrieves the trace ID from context.
func TraceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok {
		return id
	}
	return ""
}

// TracingConfig selects where spans are exported.
type TracingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"` // host:port of an OTLP/HTTP collector
	Insecure    bool          `yaml:"insecure"`
	ServiceName string        `yaml:"service_name"`
	SampleRatio float64       `yaml:"sample_ratio"`
	BatchDelay  time.Duration `yaml:"batch_delay"`
}

// TracerProvider is a trace.TracerProvider that must be shut down on exit.
type TracerProvider interface {
	trace.TracerProvider
	Shutdown(ctx context.Context) error
}

type noopProvider struct{ noop.TracerProvider }

func (noopProvider) Shutdown(context.Context) error { return nil }

// NewTracerProvider builds an OTLP/HTTP exporting provider from cfg and
// installs it as the global provider. A disabled config yields a no-op provider.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (TracerProvider, error) {
	if !cfg.Enabled {
		return noopProvider{noop.NewTracerProvider()}, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "flowgate"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}
	batch := []sdktrace.BatchSpanProcessorOption{}
	if cfg.BatchDelay > 0 {
		batch = append(batch, sdktrace.WithBatchTimeout(cfg.BatchDelay))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batch...),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", name),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
