package flow

import (
	"context"

	"github.com/G1D0/flowgate/pkg/compose"
)

// Future is the single outcome of a call started with Go.
type Future[Res any] struct {
	done chan struct{}
	res  Res
	err  error
}

func goCall[Req, Res any](ctx context.Context, req Req, call func(context.Context, Req) (Res, error)) *Future[Res] {
	f := &Future[Res]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = &compose.PanicError{Value: r}
			}
		}()
		f.res, f.err = call(ctx, req)
	}()
	return f
}

// Done is closed once the call has finished.
func (f *Future[Res]) Done() <-chan struct{} { return f.done }

// Wait blocks until the call finishes and returns its outcome.
func (f *Future[Res]) Wait() (Res, error) {
	<-f.done
	return f.res, f.err
}
