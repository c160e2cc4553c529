package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/internal/router"
)

// RouteSource hands out the active route table. *router.Watcher implements it.
type RouteSource interface {
	Router() *router.Router
}

// Handler serves gateway traffic: each request is matched to a route and
// called through that route's flow scope.
type Handler struct {
	routes RouteSource
	logger *slog.Logger
}

// NewHandler creates a gateway handler.
func NewHandler(routes RouteSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{routes: routes, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := h.routes.Router().Match(r)
	if route == nil {
		h.write(w, proxy.Text(http.StatusNotFound, "no route"))
		return
	}

	req, err := proxy.NewRequest(r)
	if err != nil {
		if errors.Is(err, proxy.ErrBodyTooLarge) {
			h.write(w, proxy.Text(http.StatusRequestEntityTooLarge, "request body too large"))
			return
		}
		h.write(w, proxy.Text(http.StatusBadRequest, "bad request"))
		return
	}
	req.Route = route.Name

	res, err := route.Scope.Call(r.Context(), req)
	if err != nil {
		h.logger.Error("call failed", "route", route.Name, "path", r.URL.Path, "error", err)
		h.write(w, proxy.Text(http.StatusBadGateway, "bad gateway"))
		return
	}
	if res == nil {
		h.logger.Error("call produced no response", "route", route.Name, "path", r.URL.Path)
		h.write(w, proxy.Text(http.StatusBadGateway, "bad gateway"))
		return
	}
	h.write(w, res)
}

func (h *Handler) write(w http.ResponseWriter, res *proxy.Response) {
	if err := res.Write(w); err != nil {
		h.logger.Debug("write response", "error", err)
	}
}
