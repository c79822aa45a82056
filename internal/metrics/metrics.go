package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the token lifecycle and query
// dispatch. All methods are safe on a nil receiver so components can run
// without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal         *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	DomainViolations     *prometheus.CounterVec
	TokenAcquisitions    *prometheus.CounterVec
	TokenCacheHits       *prometheus.CounterVec
	DeviceFlows          *prometheus.CounterVec
	PreflightChecks      *prometheus.CounterVec
	DispatchStateChanges *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_queries_total",
			Help: "Queries dispatched, by domain, tool and outcome",
		}, []string{"domain", "tool", "outcome"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insightmcp_query_duration_seconds",
			Help:    "Latency of forwarded queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
		DomainViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_domain_violations_total",
			Help: "Cross-domain dataset requests rejected by the registry",
		}, []string{"domain"}),
		TokenAcquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_token_acquisitions_total",
			Help: "Silent token acquisitions, by scope kind and outcome",
		}, []string{"kind", "outcome"}),
		TokenCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_token_cache_lookups_total",
			Help: "Token cache lookups, by scope kind and result",
		}, []string{"kind", "result"}),
		DeviceFlows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_device_flows_total",
			Help: "Device authorization flows, by outcome",
		}, []string{"outcome"}),
		PreflightChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_preflight_checks_total",
			Help: "Dataset schema preflight checks, by domain and outcome",
		}, []string{"domain", "outcome"}),
		DispatchStateChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insightmcp_dispatch_state_transitions_total",
			Help: "Dispatched call state transitions",
		}, []string{"state"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordQuery(domain, tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(domain, tool, outcome).Inc()
	if seconds > 0 {
		m.QueryDuration.WithLabelValues(domain).Observe(seconds)
	}
}

func (m *Metrics) RecordDomainViolation(domain string) {
	if m == nil {
		return
	}
	m.DomainViolations.WithLabelValues(domain).Inc()
}

func (m *Metrics) RecordTokenAcquisition(kind, outcome string) {
	if m == nil {
		return
	}
	m.TokenAcquisitions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TokenCacheHits.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordDeviceFlow(outcome string) {
	if m == nil {
		return
	}
	m.DeviceFlows.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPreflight(domain, outcome string) {
	if m == nil {
		return
	}
	m.PreflightChecks.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) RecordDispatchState(state string) {
	if m == nil {
		return
	}
	m.DispatchStateChanges.WithLabelValues(state).Inc()
}
