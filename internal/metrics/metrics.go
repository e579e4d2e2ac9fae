// Package metrics exposes simulator activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
)

// Metrics holds the simulator's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal      *prometheus.CounterVec
	RunsStarted      prometheus.Counter
	RunsCompleted    prometheus.Counter
	Transitions      prometheus.Counter
	StageVisits      *prometheus.CounterVec
	MessagesRevealed prometheus.Counter
	ControlRejected  prometheus.Counter
	DependencyUp     *prometheus.GaugeVec
}

// New creates and registers the simulator metrics. wsClients reports the
// live websocket subscriber count; it may be nil.
func New(version string, wsClients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnolsim_events_total",
			Help: "Total number of events emitted, by event name",
		}, []string{"event"}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnolsim_runs_started_total",
			Help: "Total number of playback runs started",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnolsim_runs_completed_total",
			Help: "Total number of playback runs that reached a terminal stage",
		}),
		Transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnolsim_transitions_total",
			Help: "Total number of completed stage transitions",
		}),
		StageVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnolsim_stage_visits_total",
			Help: "Total number of stage activations, by stage",
		}, []string{"stage_id"}),
		MessagesRevealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnolsim_messages_revealed_total",
			Help: "Total number of case messages revealed",
		}),
		ControlRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnolsim_control_rejected_total",
			Help: "Total number of rejected control commands",
		}),
		DependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fnolsim_dependency_up",
			Help: "Whether an optional dependency is connected (1) or not (0)",
		}, []string{"dependency"}),
	}

	start := time.Now()
	reg.MustRegister(
		m.EventsTotal,
		m.RunsStarted,
		m.RunsCompleted,
		m.Transitions,
		m.StageVisits,
		m.MessagesRevealed,
		m.ControlRejected,
		m.DependencyUp,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fnolsim_uptime_seconds",
			Help: "Number of seconds since the simulator started",
		}, func() float64 { return time.Since(start).Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "fnolsim_build_info",
			Help:        "Build version of the running simulator",
			ConstLabels: prometheus.Labels{"version": version},
		}, func() float64 { return 1 }),
	)
	if wsClients != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fnolsim_ws_clients",
			Help: "Number of active WebSocket client connections",
		}, func() float64 { return float64(wsClients()) }))
	}
	return m
}

// Observe updates counters from a bus event. Register it with Bus.AddHook.
func (m *Metrics) Observe(e events.Event) {
	m.EventsTotal.WithLabelValues(e.Name).Inc()

	switch e.Name {
	case events.SimulationStarted:
		m.RunsStarted.Inc()
	case events.SimulationCompleted:
		m.RunsCompleted.Inc()
	case events.TransitionCompleted:
		m.Transitions.Inc()
	case events.StageActivated:
		if id, ok := e.Fields["stage_id"].(string); ok {
			m.StageVisits.WithLabelValues(id).Inc()
		}
	case events.MessageRevealed:
		m.MessagesRevealed.Inc()
	case events.ControlRejected:
		m.ControlRejected.Inc()
	}
}

// SetDependency records whether an optional dependency is reachable.
func (m *Metrics) SetDependency(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.DependencyUp.WithLabelValues(name).Set(v)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
