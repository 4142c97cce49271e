package door

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/garagedoor/internal/infrastructure/mqtt"
)

// SettleDelay is how long the monitor waits after start before the first
// publication, so the line's pull-up has settled.
const SettleDelay = DebounceWindow

// Publisher sends retained state updates to the bus.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Logger defines the logging interface for the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeFunc observes every state the monitor publishes.
type ChangeFunc func(sensor string, state State)

// Monitor is the permanent loop reflecting one sensor onto the bus.
type Monitor struct {
	sensor *Sensor
	pub    Publisher
	topic  string
	settle time.Duration

	logger   Logger
	mu       sync.RWMutex
	onChange []ChangeFunc

	// pubMu orders publications and guards last.
	pubMu   sync.Mutex
	last    State
	hasLast bool
}

// NewMonitor creates a monitor publishing sensor's state through pub.
func NewMonitor(sensor *Sensor, pub Publisher) *Monitor {
	return &Monitor{
		sensor: sensor,
		pub:    pub,
		topic:  mqtt.Topics{}.DoorState(sensor.Name()),
		settle: SettleDelay,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnChange adds a listener invoked after each publication attempt.
// Listeners run on the monitor goroutine and must not block.
func (m *Monitor) SetOnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Topic returns the topic the monitor publishes on.
func (m *Monitor) Topic() string {
	return m.topic
}

// Run publishes the current state after the settle delay, then publishes
// each debounced transition. It only returns when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("sensor monitoring started", "sensor", m.sensor.Name(), "topic", m.topic)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.settle):
	}

	last := m.sensor.ReadState()
	m.publish(last)
	m.logger.Info("sensor initial state", "sensor", m.sensor.Name(), "state", last.String())

	// Wait relative to what was published, so a change during a slow
	// publish is still reported.
	for {
		state, err := m.sensor.WaitForChangeFrom(ctx, last)
		if err != nil {
			m.logger.Info("sensor monitoring stopped", "sensor", m.sensor.Name())
			return err
		}
		m.publish(state)
		last = state
		m.logger.Info("sensor event", "sensor", m.sensor.Name(), "state", state.String())
	}
}

// Republish sends the last published state again, for a bus session that
// has just reconnected. It does nothing before the initial publication and
// does not notify listeners.
func (m *Monitor) Republish() {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if m.hasLast {
		m.send(m.last)
	}
}

// publish sends the state and notifies listeners. Bus errors are dropped;
// the next transition publishes again.
func (m *Monitor) publish(state State) {
	m.pubMu.Lock()
	m.last, m.hasLast = state, true
	m.send(state)
	m.pubMu.Unlock()

	m.mu.RLock()
	listeners := m.onChange
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(m.sensor.Name(), state)
	}
}

func (m *Monitor) send(state State) {
	if err := m.pub.PublishRetained(m.topic, []byte(state.String())); err != nil {
		m.logger.Debug("state publish dropped",
			"sensor", m.sensor.Name(),
			"state", state.String(),
			"error", err,
		)
	}
}
