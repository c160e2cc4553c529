package middleware

import (
	"maps"
	"net/http"

	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/pkg/compose"
)

// SetHeaders sets fixed headers on the upstream request. An empty value
// removes the header.
func SetHeaders(headers map[string]string) Middleware {
	headers = maps.Clone(headers)
	return func(c *Context, next compose.Next) error {
		c.SetReq(func(r *proxy.Request) *proxy.Request {
			if r.Header == nil {
				r.Header = make(http.Header)
			}
			for k, v := range headers {
				if v == "" {
					r.Header.Del(k)
					continue
				}
				r.Header.Set(k, v)
			}
			return r
		})
		return next()
	}
}
