// Package compose threads a call through an ordered chain of middleware
// around a terminal continuation.
//
// Every middleware runs code before and after its next, so for a chain
// [a, b] the observable order is a-before, b-before, terminal, b-after,
// a-after. Each position may advance the chain at most once.
package compose

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Next proceeds to the following middleware, or to the terminal
// continuation once the chain is exhausted.
type Next func() error

// Middleware observes the call context, may delegate to next, and may act on
// the outcome after next returns. Returning without calling next
// short-circuits the remainder of the chain.
type Middleware[C any] func(c C, next Next) error

// Runner executes a composed chain for one call.
type Runner[C any] func(c C, terminal Next) error

// Compose validates chain and returns a Runner over it. The chain is used as
// given; callers that keep mutating their slice must pass a copy.
func Compose[C any](chain []Middleware[C]) (Runner[C], error) {
	for i, m := range chain {
		if m == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNotInvocable, i)
		}
	}
	return func(c C, terminal Next) error {
		d := &dispatcher[C]{chain: chain, c: c, terminal: terminal, last: -1}
		return d.dispatch(0)
	}, nil
}

// MustCompose is like Compose but panics if chain is invalid.
func MustCompose[C any](chain []Middleware[C]) Runner[C] {
	run, err := Compose(chain)
	if err != nil {
		panic(err)
	}
	return run
}

// dispatcher holds the cursor for a single run of the chain.
type dispatcher[C any] struct {
	chain    []Middleware[C]
	c        C
	terminal Next

	mu   sync.Mutex
	last int
}

func (d *dispatcher[C]) dispatch(i int) (err error) {
	d.mu.Lock()
	if i <= d.last {
		d.mu.Unlock()
		return ErrNextCalledMultipleTimes
	}
	d.last = i
	d.mu.Unlock()

	var step Middleware[C]
	switch {
	case i < len(d.chain):
		step = d.chain[i]
	case i == len(d.chain) && d.terminal != nil:
		terminal := d.terminal
		step = func(C, Next) error { return terminal() }
	}
	if step == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return step(d.c, func() error { return d.dispatch(i + 1) })
}
