// Package middleware holds the gateway's flow middleware. Every constructor
// returns a Middleware that can be registered on a flow Controller or Scope.
package middleware

import (
	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/pkg/flow"
)

// Middleware is a gateway chain member.
type Middleware = flow.Middleware[*proxy.Request, *proxy.Response]

// Context is the per-call state a Middleware sees.
type Context = flow.Context[*proxy.Request, *proxy.Response]

// KeyFunc derives a grouping key (client, tenant, session) from a request.
type KeyFunc func(*proxy.Request) string

// ByClientIP keys calls by the caller's address.
func ByClientIP(r *proxy.Request) string { return r.ClientIP }

// ByHeader keys calls by a request header, falling back to the client IP
// when the header is absent.
func ByHeader(name string) KeyFunc {
	return func(r *proxy.Request) string {
		if v := r.Header.Get(name); v != "" {
			return v
		}
		return r.ClientIP
	}
}

// status returns the status code of the call's response, or 0 if there is none.
func status(c *Context) int {
	if res := c.Res(); res != nil {
		return res.StatusCode
	}
	return 0
}

// respond short-circuits the call with res.
func respond(c *Context, res *proxy.Response) {
	c.SetRes(func(*proxy.Response) *proxy.Response { return res })
}
