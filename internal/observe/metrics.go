package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	CallsTotal       *prometheus.CounterVec
	CallDuration     *prometheus.HistogramVec
	CallErrors       *prometheus.CounterVec
	BackendHealthy   *prometheus.GaugeVec
	RateLimitedTotal *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec
	ActiveConns      *prometheus.GaugeVec
	RouteReloads     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_calls_total",
				Help: "Total number of flow calls that produced a response.",
			},
			[]string{"route", "status", "method"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgate_call_duration_seconds",
				Help:    "Flow call duration in seconds, middleware included.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
		CallErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_call_errors_total",
				Help: "Total number of flow calls that failed with an error.",
			},
			[]string{"route"},
		),
		BackendHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowgate_backend_healthy",
				Help: "Whether a backend is healthy (1) or not (0).",
			},
			[]string{"backend"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_rate_limited_total",
				Help: "Total number of calls short-circuited by rate limiting.",
			},
			[]string{"route"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowgate_circuit_state",
				Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
			},
			[]string{"backend"},
		),
		ActiveConns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowgate_active_calls",
				Help: "Number of in-flight calls per backend.",
			},
			[]string{"backend"},
		),
		RouteReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_route_reloads_total",
				Help: "Route table reloads by outcome.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.CallErrors,
		m.BackendHealthy,
		m.RateLimitedTotal,
		m.CircuitState,
		m.ActiveConns,
		m.RouteReloads,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
