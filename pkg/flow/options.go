package flow

import (
	"io"
	"log/slog"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName labels the controller in log output.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for debug-level call tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{name: "flow"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
