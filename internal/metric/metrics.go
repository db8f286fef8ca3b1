// Package metric holds the daemon's Prometheus instrumentation: event
// traffic, lifecycle transitions, restarts and poll failures, served from
// the health server's /metrics endpoint.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the core pipeline metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal      *prometheus.CounterVec
	EventsUnhandled  prometheus.Counter
	StateTransitions *prometheus.CounterVec
	PipelineState    prometheus.Gauge
	EOSRestarts      prometheus.Counter
	PollFailures     *prometheus.CounterVec
	CommandsTotal    *prometheus.CounterVec
}

// New creates and registers the core metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpole_events_total",
			Help: "Engine events drained from the bus, by kind.",
		}, []string{"kind"}),
		EventsUnhandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartpole_events_unhandled_total",
			Help: "Events dropped because no handler was registered.",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpole_state_transitions_total",
			Help: "Confirmed lifecycle transitions.",
		}, []string{"from", "to"}),
		PipelineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartpole_pipeline_state",
			Help: "Current lifecycle state (0=null 1=ready 2=paused 3=playing).",
		}),
		EOSRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartpole_eos_restarts_total",
			Help: "End-of-stream auto-restart attempts.",
		}),
		PollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpole_poll_failures_total",
			Help: "Failed bounded engine queries, by query.",
		}, []string{"query"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpole_commands_total",
			Help: "Control-plane commands processed, by name and status.",
		}, []string{"command", "status"}),
	}

	m.registry.MustRegister(
		m.EventsTotal,
		m.EventsUnhandled,
		m.StateTransitions,
		m.PipelineState,
		m.EOSRestarts,
		m.PollFailures,
		m.CommandsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry for the health server's /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
