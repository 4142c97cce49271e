package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/garagedoor/internal/connectivity"
	"github.com/nerrad567/garagedoor/internal/door"
)

const namespace = "garagedoor"

// Pulse results.
const (
	PulseOK     = "ok"
	PulseFailed = "failed"
)

// Metrics holds the controller's collectors.
type Metrics struct {
	registry *prometheus.Registry

	doorOpen        *prometheus.GaugeVec
	doorTransitions *prometheus.CounterVec
	relayPulses     *prometheus.CounterVec
	pulseSeconds    *prometheus.HistogramVec
	routerMessages  *prometheus.CounterVec
	connState       prometheus.Gauge
	connTransitions *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		doorOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "door_open",
			Help:      "Debounced door state, 1 when open.",
		}, []string{"sensor"}),
		doorTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "door_transitions_total",
			Help:      "Debounced door state changes.",
		}, []string{"sensor", "state"}),
		relayPulses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_pulses_total",
			Help:      "Actuator pulses by outcome.",
		}, []string{"actuator", "result"}),
		pulseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_pulse_seconds",
			Help:      "Time the actuator output was held active.",
			Buckets:   []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.5},
		}, []string{"actuator"}),
		routerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_messages_total",
			Help:      "Inbound bus messages by routing result.",
		}, []string{"result"}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connectivity_state",
			Help:      "Connectivity level: 0 disconnected, 1 link up, 2 address acquired, 3 bus connected.",
		}),
		connTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_transitions_total",
			Help:      "Connectivity state entries.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		m.doorOpen,
		m.doorTransitions,
		m.relayPulses,
		m.pulseSeconds,
		m.routerMessages,
		m.connState,
		m.connTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDoor records a debounced door state.
func (m *Metrics) ObserveDoor(sensor string, state door.State) {
	v := 0.0
	if state == door.Open {
		v = 1
	}
	m.doorOpen.WithLabelValues(sensor).Set(v)
	m.doorTransitions.WithLabelValues(sensor, state.String()).Inc()
}

// ObservePulse records a completed actuator pulse.
func (m *Metrics) ObservePulse(actuator string, held time.Duration, err error) {
	result := PulseOK
	if err != nil {
		result = PulseFailed
	}
	m.relayPulses.WithLabelValues(actuator, result).Inc()
	if held > 0 {
		m.pulseSeconds.WithLabelValues(actuator).Observe(held.Seconds())
	}
}

// ObserveMessage records one routed bus message.
func (m *Metrics) ObserveMessage(result string) {
	m.routerMessages.WithLabelValues(result).Inc()
}

// ObserveConnectivity records a connectivity state change.
func (m *Metrics) ObserveConnectivity(_, to connectivity.State) {
	m.connState.Set(float64(to))
	m.connTransitions.WithLabelValues(to.String()).Inc()
}
