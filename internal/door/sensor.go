package door

import (
	"context"
	"time"

	"github.com/nerrad567/garagedoor/internal/gpio"
)

// Timing constants for the sensor state machine.
const (
	// PollInterval is how often WaitForState samples the line.
	PollInterval = 50 * time.Millisecond

	// DebounceWindow is how long a new level must hold before it is accepted.
	DebounceWindow = 50 * time.Millisecond

	// debounceSample is the sampling period inside the debounce window.
	debounceSample = 10 * time.Millisecond
)

// State is the position of a door.
type State int

const (
	// Closed means the reed contact pulls the line low.
	Closed State = iota
	// Open means the line idles high on its pull-up.
	Open
)

// String returns the wire payload for the state.
func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Opposite returns the other door state.
func (s State) Opposite() State {
	if s == Open {
		return Closed
	}
	return Open
}

// StateFromLevel maps a line level to a door state (high = Open).
func StateFromLevel(level bool) State {
	if level {
		return Open
	}
	return Closed
}

// Sensor watches one input line. It has no state beyond the line itself.
type Sensor struct {
	line gpio.InputLine
	name string

	pollInterval   time.Duration
	debounceWindow time.Duration
	debounceSample time.Duration
}

// NewSensor creates a sensor that exclusively owns line.
func NewSensor(line gpio.InputLine, name string) *Sensor {
	return &Sensor{
		line:           line,
		name:           name,
		pollInterval:   PollInterval,
		debounceWindow: DebounceWindow,
		debounceSample: debounceSample,
	}
}

// Name returns the sensor's logical name.
func (s *Sensor) Name() string {
	return s.name
}

// ReadState returns the current state of the door. It never fails.
func (s *Sensor) ReadState() State {
	return StateFromLevel(s.line.Level())
}

// WaitForState blocks until ReadState returns target, polling every
// PollInterval. It has no timeout; only cancellation of ctx ends it early.
func (s *Sensor) WaitForState(ctx context.Context, target State) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.ReadState() == target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForChange blocks until the door leaves the state it is in at call
// time and the new state has held for the full debounce window. It returns
// the confirmed new state.
func (s *Sensor) WaitForChange(ctx context.Context) (State, error) {
	return s.WaitForChangeFrom(ctx, s.ReadState())
}

// WaitForChangeFrom is WaitForChange against a known baseline. If the door
// already differs from current, only the debounce window remains.
func (s *Sensor) WaitForChangeFrom(ctx context.Context, current State) (State, error) {
	target := current.Opposite()

	for {
		if err := s.WaitForState(ctx, target); err != nil {
			return current, err
		}

		held, err := s.holds(ctx, target)
		if err != nil {
			return current, err
		}
		if held {
			return target, nil
		}
	}
}

// holds reports whether the line stays at target for the whole debounce
// window.
func (s *Sensor) holds(ctx context.Context, target State) (bool, error) {
	deadline := time.NewTimer(s.debounceWindow)
	defer deadline.Stop()
	ticker := time.NewTicker(s.debounceSample)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			if s.ReadState() != target {
				return false, nil
			}
		case <-deadline.C:
			return s.ReadState() == target, nil
		}
	}
}
