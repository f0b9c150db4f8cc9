// Package metrics exposes Prometheus collectors for the sentinel gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the gateway's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions     prometheus.Counter
	interventions   *prometheus.CounterVec
	upstreamConnect *prometheus.CounterVec
	liveSessions    prometheus.Gauge
	audioSeconds    *prometheus.CounterVec
}

// New builds a Metrics backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_config_submissions_total",
			Help: "Configuration submissions received by live session contexts.",
		}),
		interventions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_interventions_total",
			Help: "Completed monitor interventions relayed to clients.",
		}, []string{"format"}),
		upstreamConnect: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_upstream_connects_total",
			Help: "Gemini Live connection attempts by result.",
		}, []string{"result"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_live_sessions",
			Help: "Currently active live monitor sessions.",
		}),
		audioSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_audio_seconds_total",
			Help: "Seconds of PCM audio relayed, by direction (in: client to model, out: model to client).",
		}, []string{"direction"}),
	}

	reg.MustRegister(m.submissions, m.interventions, m.upstreamConnect, m.liveSessions, m.audioSeconds)
	return m
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConfigSubmitted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) Intervention(format string) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.interventions.WithLabelValues(format).Inc()
}

func (m *Metrics) UpstreamConnect(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.upstreamConnect.WithLabelValues(result).Inc()
}

// Audio accounts relayed audio. direction is "in" or "out".
func (m *Metrics) Audio(direction string, d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.audioSeconds.WithLabelValues(direction).Add(d.Seconds())
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}
