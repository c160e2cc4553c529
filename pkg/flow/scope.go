package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/G1D0/flowgate/pkg/compose"
)

// Scope is an independent chain seeded from a Controller. It shares only the
// terminal action with the Controller and with other scopes.
type Scope[Req, Res any] struct {
	p *pipeline[Req, Res]

	mu    sync.RWMutex
	chain []Middleware[Req, Res]
}

// Register inserts m at the front (Prefix) or the back (Suffix) of the scope.
func (s *Scope[Req, Res]) Register(pos Position, m Middleware[Req, Res]) error {
	if m == nil {
		return fmt.Errorf("%w: register %s on scope of %s", compose.ErrNotInvocable, pos, s.p.opts.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch pos {
	case Prefix:
		chain := make([]Middleware[Req, Res], 0, len(s.chain)+1)
		chain = append(chain, m)
		s.chain = append(chain, s.chain...)
	case Suffix:
		s.chain = append(s.chain, m)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPosition, int(pos))
	}
	return nil
}

// Len returns the number of middleware in the scope.
func (s *Scope[Req, Res]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chain)
}

// Call runs req through the scope's chain and the action.
func (s *Scope[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	s.mu.RLock()
	chain := append([]Middleware[Req, Res](nil), s.chain...)
	s.mu.RUnlock()
	return s.p.call(ctx, chain, req, "scoped")
}

// Go starts Call on a new goroutine and returns a Future for its outcome.
func (s *Scope[Req, Res]) Go(ctx context.Context, req Req) *Future[Res] {
	return goCall(ctx, req, s.Call)
}
