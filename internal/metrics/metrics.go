package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weather_dashboard"

// Fetch label values.
const (
	ModeSilent      = "silent"
	ModeInteractive = "interactive"

	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics owns a private registry so tests can build as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	fetchesTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed weather fetch attempts.",
		}, []string{"mode", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of weather provider round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Dashboards with a live refresh timer.",
		}),
	}
	m.registry.MustRegister(
		m.fetchesTotal,
		m.fetchDuration,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch records one completed fetch.
func (m *Metrics) ObserveFetch(silent bool, err error, d time.Duration) {
	if m == nil {
		return
	}
	mode := ModeInteractive
	if silent {
		mode = ModeSilent
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.fetchesTotal.WithLabelValues(mode, outcome).Inc()
	m.fetchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
