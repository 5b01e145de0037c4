package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters and gauges of the simulator.
type Metrics struct {
	registry             *prometheus.Registry
	sessionsStartedTotal prometheus.Counter
	sessionsEndedTotal   prometheus.Counter
	heartbeatsTotal      prometheus.Counter
	interactionsTotal    prometheus.Counter
	activeSessions       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_sessions_started_total",
		Help: "Total number of playback sessions registered",
	})
	sessionsEndedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_sessions_ended_total",
		Help: "Total number of playback sessions finalized",
	})
	heartbeatsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_heartbeats_total",
		Help: "Total number of heartbeats received",
	})
	interactionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_interactions_total",
		Help: "Total number of interaction events received",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watch_active_sessions",
		Help: "Number of sessions that started and have not ended",
	})

	registry.MustRegister(
		sessionsStartedTotal,
		sessionsEndedTotal,
		heartbeatsTotal,
		interactionsTotal,
		activeSessions,
	)

	return &Metrics{
		registry:             registry,
		sessionsStartedTotal: sessionsStartedTotal,
		sessionsEndedTotal:   sessionsEndedTotal,
		heartbeatsTotal:      heartbeatsTotal,
		interactionsTotal:    interactionsTotal,
		activeSessions:       activeSessions,
	}
}

func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) IncSessionsEnded() {
	m.sessionsEndedTotal.Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) IncHeartbeats() {
	m.heartbeatsTotal.Inc()
}

func (m *Metrics) IncInteractions() {
	m.interactionsTotal.Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
