package router

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/pkg/flow"
)

// Scope is the flow a matched request is called through.
type Scope = flow.Scope[*proxy.Request, *proxy.Response]

// Route is a compiled route ready for matching.
type Route struct {
	Name     string
	Path     string            // prefix to match, wildcard stripped
	Headers  map[string]string // all must match; "*" only requires presence
	Backends []string
	Scope    *Scope
}

// Router matches incoming requests to routes based on path and headers.
//
// Matching rules:
//  1. Path is matched by prefix (longest prefix wins)
//  2. If a route specifies headers, ALL must match
//  3. At equal path length routes with more headers are checked first
//  4. If no route matches, Match returns nil
type Router struct {
	routes  []Route
	closers []io.Closer
}

func newRouter(routes []Route, closers []io.Closer) *Router {
	for i := range routes {
		routes[i].Path = strings.TrimSuffix(strings.TrimSuffix(routes[i].Path, "/*"), "*")
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if len(routes[i].Path) != len(routes[j].Path) {
			return len(routes[i].Path) > len(routes[j].Path)
		}
		return len(routes[i].Headers) > len(routes[j].Headers)
	})
	return &Router{routes: routes, closers: closers}
}

// Match finds the best matching route for the request, or nil.
func (r *Router) Match(req *http.Request) *Route {
	for i := range r.routes {
		route := &r.routes[i]
		if !strings.HasPrefix(req.URL.Path, route.Path) {
			continue
		}
		if !matchHeaders(req, route.Headers) {
			continue
		}
		return route
	}
	return nil
}

// Routes returns the compiled routes in match order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Close stops the background work owned by the routes (health probes,
// limiter cleanup).
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func matchHeaders(req *http.Request, required map[string]string) bool {
	for key, value := range required {
		got := req.Header.Get(key)
		if got == "" && http.CanonicalHeaderKey(key) == "Host" {
			got = req.Host
		}
		if value == "*" {
			if got == "" {
				return false
			}
		} else if got != value {
			return false
		}
	}
	return true
}
