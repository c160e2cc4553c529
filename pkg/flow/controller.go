// Package flow wraps a terminal action in a registry of onion middleware.
//
// A Controller owns a global chain that grows by Register. Each Call builds a
// fresh Context, snapshots the chain, and dispatches it around the action.
// CreateScope copies the chain at that instant into an independent Scope that
// can be extended at either end without touching the Controller.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/G1D0/flowgate/pkg/compose"
)

// Action is the terminal operation a flow wraps.
type Action[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Middleware is a chain member operating on a flow Context.
type Middleware[Req, Res any] = compose.Middleware[*Context[Req, Res]]

// Controller wraps an Action with a mutable, ordered list of global middleware.
type Controller[Req, Res any] struct {
	p *pipeline[Req, Res]

	mu    sync.RWMutex
	chain []Middleware[Req, Res]
}

// New creates a Controller around action with an empty global chain.
func New[Req, Res any](action Action[Req, Res], opts ...Option) (*Controller[Req, Res], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return &Controller[Req, Res]{
		p: &pipeline[Req, Res]{action: action, opts: newOptions(opts)},
	}, nil
}

// Register appends m to the global chain. It affects later calls and scopes
// created afterwards, never scopes that already exist.
func (f *Controller[Req, Res]) Register(m Middleware[Req, Res]) error {
	if m == nil {
		return fmt.Errorf("%w: register on %s", compose.ErrNotInvocable, f.p.opts.name)
	}
	f.mu.Lock()
	f.chain = append(f.chain, m)
	f.mu.Unlock()
	return nil
}

// Len returns the number of globally registered middleware.
func (f *Controller[Req, Res]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chain)
}

// CreateScope returns a Scope whose chain starts as a copy of the global
// chain at this moment.
func (f *Controller[Req, Res]) CreateScope() *Scope[Req, Res] {
	return &Scope[Req, Res]{p: f.p, chain: f.snapshot()}
}

// Call runs req through the global chain and the action. Middleware
// registered after Call has taken its snapshot are not part of this call.
func (f *Controller[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	return f.p.call(ctx, f.snapshot(), req, "global")
}

// Go starts Call on a new goroutine and returns a Future for its outcome.
func (f *Controller[Req, Res]) Go(ctx context.Context, req Req) *Future[Res] {
	return goCall(ctx, req, f.Call)
}

func (f *Controller[Req, Res]) snapshot() []Middleware[Req, Res] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Middleware[Req, Res](nil), f.chain...)
}

// pipeline is the part shared by a Controller and all of its scopes.
type pipeline[Req, Res any] struct {
	action Action[Req, Res]
	opts   options
}

func (p *pipeline[Req, Res]) call(ctx context.Context, chain []Middleware[Req, Res], req Req, scope string) (Res, error) {
	var zero Res

	run, err := compose.Compose(chain)
	if err != nil {
		return zero, err
	}

	c := newContext[Req, Res](ctx, req)
	start := time.Now()
	err = run(c, func() error {
		res, err := p.action(c.Context(), c.Req())
		if err != nil {
			return err
		}
		c.store(res)
		return nil
	})

	p.opts.logger.LogAttrs(c.Context(), slog.LevelDebug, "flow call finished",
		slog.String("flow", p.opts.name),
		slog.String("scope", scope),
		slog.String("call_id", c.ID()),
		slog.Int("middleware", len(chain)),
		slog.Duration("elapsed", time.Since(start)),
		slog.Any("error", err),
	)

	if err != nil {
		return zero, err
	}
	return c.Res(), nil
}
