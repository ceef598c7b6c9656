package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the distribution server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal    prometheus.Counter
	connectionsRejected prometheus.Counter
	requestsTotal       *prometheus.CounterVec
	streamRequests      *prometheus.CounterVec
	pumpLaunches        prometheus.Counter
	pumpFailures        prometheus.Counter
	activeSessions      prometheus.Gauge
	variantsCreated     prometheus.Counter
	variantsFailed      prometheus.Counter
	clientBandwidth     prometheus.Histogram
	adminRequests       prometheus.Counter
	adminErrors         prometheus.Counter
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_connections_total",
			Help: "Total number of accepted control connections",
		}),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_connections_rejected_total",
			Help: "Control connections closed because the handler pool was full",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mds_requests_total",
			Help: "Decoded control requests by opcode",
		}, []string{"opcode"}),
		streamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mds_stream_requests_total",
			Help: "Stream requests by transport kind",
		}, []string{"transport"}),
		pumpLaunches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_pump_launches_total",
			Help: "Media pump processes started",
		}),
		pumpFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_pump_failures_total",
			Help: "Media pump processes that failed to start or exited non-zero",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mds_active_sessions",
			Help: "Transport sessions whose pump is still running",
		}),
		variantsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_variants_created_total",
			Help: "Derived assets produced by the catalog builder",
		}),
		variantsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_variants_failed_total",
			Help: "Derived assets the catalog builder failed to produce",
		}),
		clientBandwidth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mds_client_bandwidth_mbps",
			Help:    "Bandwidth estimates reported by clients on stream requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100},
		}),
		adminRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_admin_requests_total",
			Help: "Total number of admin HTTP requests received",
		}),
		adminErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mds_admin_errors_total",
			Help: "Admin HTTP responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.connectionsTotal,
		m.connectionsRejected,
		m.requestsTotal,
		m.streamRequests,
		m.pumpLaunches,
		m.pumpFailures,
		m.activeSessions,
		m.variantsCreated,
		m.variantsFailed,
		m.clientBandwidth,
		m.adminRequests,
		m.adminErrors,
	)

	return m
}

func (m *Metrics) IncConnections() {
	if m != nil {
		m.connectionsTotal.Inc()
	}
}

func (m *Metrics) IncConnectionsRejected() {
	if m != nil {
		m.connectionsRejected.Inc()
	}
}

// IncRequest counts a decoded request. Unknown opcodes are folded into "other"
// to keep label cardinality bounded.
func (m *Metrics) IncRequest(opcode string) {
	if m == nil {
		return
	}
	switch opcode {
	case "LIST", "STREAM":
	default:
		opcode = "other"
	}
	m.requestsTotal.WithLabelValues(opcode).Inc()
}

func (m *Metrics) IncStreamRequest(transport string) {
	if m != nil {
		m.streamRequests.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) IncPumpLaunches() {
	if m != nil {
		m.pumpLaunches.Inc()
	}
}

func (m *Metrics) IncPumpFailures() {
	if m != nil {
		m.pumpFailures.Inc()
	}
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}

func (m *Metrics) IncVariantsCreated() {
	if m != nil {
		m.variantsCreated.Inc()
	}
}

func (m *Metrics) IncVariantsFailed() {
	if m != nil {
		m.variantsFailed.Inc()
	}
}

func (m *Metrics) ObserveClientBandwidth(mbps float64) {
	if m != nil {
		m.clientBandwidth.Observe(mbps)
	}
}

func (m *Metrics) IncAdminRequests() {
	if m != nil {
		m.adminRequests.Inc()
	}
}

func (m *Metrics) IncAdminErrors() {
	if m != nil {
		m.adminErrors.Inc()
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
