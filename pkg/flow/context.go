package flow

import (
	"context"

	"github.com/google/uuid"
)

// Context is the per-invocation record shared by the middleware chain and
// the terminal action. A fresh Context is built for every call and is never
// reused once the call returns.
type Context[Req, Res any] struct {
	ctx    context.Context
	id     string
	req    Req
	res    Res
	hasRes bool
}

func newContext[Req, Res any](ctx context.Context, req Req) *Context[Req, Res] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context[Req, Res]{
		ctx: ctx,
		id:  uuid.NewString(),
		req: req,
	}
}

// ID returns the unique identifier of this invocation.
func (c *Context[Req, Res]) ID() string { return c.id }

// Req returns the request the call was made with.
func (c *Context[Req, Res]) Req() Req { return c.req }

// SetReq replaces the request with update applied to the current one. The
// terminal action receives whatever request is current when it runs.
func (c *Context[Req, Res]) SetReq(update func(current Req) Req) {
	c.req = update(c.req)
}

// Res returns the current result, or the zero value if none is set yet.
func (c *Context[Req, Res]) Res() Res { return c.res }

// HasRes reports whether a result has been stored.
func (c *Context[Req, Res]) HasRes() bool { return c.hasRes }

// SetRes replaces the result with update applied to the current one.
// To store a value outright, return it from update and ignore the argument.
func (c *Context[Req, Res]) SetRes(update func(current Res) Res) {
	c.res = update(c.res)
	c.hasRes = true
}

// Context returns the context.Context the terminal action will receive.
func (c *Context[Req, Res]) Context() context.Context { return c.ctx }

// SetContext replaces the context.Context passed further down the chain.
// A nil ctx is ignored.
func (c *Context[Req, Res]) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

func (c *Context[Req, Res]) store(res Res) {
	c.res = res
	c.hasRes = true
}
