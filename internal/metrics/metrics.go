// Package metrics is ambient observability: Prometheus counters on the
// server, and an optional statsd emitter on the agent. Nothing in this
// package is consulted by detection or alerting decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Server holds the counters exposed at GET /metrics.
type Server struct {
	Registry         *prometheus.Registry
	EventsIngested   prometheus.Counter
	Detections       *prometheus.CounterVec
	AlertsRouted     prometheus.Counter
	AlertsSuppressed prometheus.Counter
}

// NewServer registers and returns the server-side counter set on registry.
func NewServer(registry *prometheus.Registry) *Server {
	m := &Server{
		Registry: registry,
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minisoc_events_ingested_total",
			Help: "Total number of events accepted at /ingest.",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minisoc_detections_total",
			Help: "Total number of detections emitted, by rule_id.",
		}, []string{"rule_id"}),
		AlertsRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minisoc_alerts_routed_total",
			Help: "Total number of alerts that were notified (not suppressed).",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minisoc_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by dedupe.",
		}),
	}
	registry.MustRegister(m.EventsIngested, m.Detections, m.AlertsRouted, m.AlertsSuppressed)
	return m
}
