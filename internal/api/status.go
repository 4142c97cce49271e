package api

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/garagedoor/internal/connectivity"
	"github.com/nerrad567/garagedoor/internal/door"
)

// DoorStatus is the last published state of one sensor.
type DoorStatus struct {
	Sensor string    `json:"sensor"`
	State  string    `json:"state"`
	Since  time.Time `json:"since"`
}

// ActuatorStatus summarises pulses for one actuator.
type ActuatorStatus struct {
	Name      string    `json:"name"`
	Pulses    uint64    `json:"pulses"`
	Failures  uint64    `json:"failures"`
	LastPulse time.Time `json:"last_pulse,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// ConnectivityStatus is the supervisor's current level.
type ConnectivityStatus struct {
	State       string    `json:"state"`
	Since       time.Time `json:"since"`
	Transitions uint64    `json:"transitions"`
}

// Snapshot is the /status response body.
type Snapshot struct {
	DeviceID      string             `json:"device_id"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Connectivity  ConnectivityStatus `json:"connectivity"`
	Doors         []DoorStatus       `json:"doors"`
	Actuators     []ActuatorStatus   `json:"actuators"`
}

// Tracker accumulates controller state from the component callbacks.
// Its Observe methods match the door, relay, and connectivity hook
// signatures.
type Tracker struct {
	deviceID string
	version  string
	started  time.Time
	now      func() time.Time

	mu        sync.RWMutex
	conn      connectivity.State
	connSince time.Time
	connMoves uint64
	doors     map[string]DoorStatus
	actuators map[string]*ActuatorStatus
}

// NewTracker creates a tracker starting in the disconnected state.
func NewTracker(deviceID, version string) *Tracker {
	now := time.Now()
	return &Tracker{
		deviceID:  deviceID,
		version:   version,
		started:   now,
		now:       time.Now,
		conn:      connectivity.Disconnected,
		connSince: now,
		doors:     make(map[string]DoorStatus),
		actuators: make(map[string]*ActuatorStatus),
	}
}

// AddActuator lists an actuator before its first pulse.
func (t *Tracker) AddActuator(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.actuators[name]; !ok {
		t.actuators[name] = &ActuatorStatus{Name: name}
	}
}

// ObserveDoor records a published door state.
func (t *Tracker) ObserveDoor(sensor string, state door.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doors[sensor] = DoorStatus{Sensor: sensor, State: state.String(), Since: t.now().UTC()}
}

// ObservePulse records a completed pulse.
func (t *Tracker) ObservePulse(actuator string, _ time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.actuators[actuator]
	if !ok {
		a = &ActuatorStatus{Name: actuator}
		t.actuators[actuator] = a
	}
	a.Pulses++
	a.LastPulse = t.now().UTC()
	a.LastError = ""
	if err != nil {
		a.Failures++
		a.LastError = err.Error()
	}
}

// ObserveConnectivity records a supervisor state change.
func (t *Tracker) ObserveConnectivity(_, to connectivity.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = to
	t.connSince = t.now().UTC()
	t.connMoves++
}

// BusConnected reports whether the supervisor last reached the bus.
func (t *Tracker) BusConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn == connectivity.BusConnected
}

// Snapshot returns a copy of the current state, sorted by name.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		DeviceID:      t.deviceID,
		Version:       t.version,
		UptimeSeconds: int64(t.now().Sub(t.started).Seconds()),
		Connectivity: ConnectivityStatus{
			State:       t.conn.String(),
			Since:       t.connSince.UTC(),
			Transitions: t.connMoves,
		},
		Doors:     make([]DoorStatus, 0, len(t.doors)),
		Actuators: make([]ActuatorStatus, 0, len(t.actuators)),
	}
	for _, d := range t.doors {
		snap.Doors = append(snap.Doors, d)
	}
	for _, a := range t.actuators {
		snap.Actuators = append(snap.Actuators, *a)
	}
	sort.Slice(snap.Doors, func(i, j int) bool { return snap.Doors[i].Sensor < snap.Doors[j].Sensor })
	sort.Slice(snap.Actuators, func(i, j int) bool { return snap.Actuators[i].Name < snap.Actuators[j].Name })
	return snap
}
