package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/garagedoor/internal/gpio"
)

// PulseDuration is how long the line is held active per toggle.
const PulseDuration = 200 * time.Millisecond

// Logger defines the logging interface for actuators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PulseFunc observes a finished pulse. err is nil for a full pulse.
type PulseFunc func(actuator string, held time.Duration, err error)

// Actuator is a named output line pulsed to operate an opener.
type Actuator struct {
	line  gpio.OutputLine
	name  string
	pulse time.Duration

	// pulseMu serialises pulses.
	pulseMu sync.Mutex

	logger  Logger
	cbMu    sync.RWMutex
	onPulse []PulseFunc
}

// New creates an actuator that exclusively owns line and drives it inactive.
func New(line gpio.OutputLine, name string) (*Actuator, error) {
	if line == nil {
		return nil, ErrNoLine
	}
	if err := line.Set(false); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLineWrite, name, err)
	}
	return &Actuator{
		line:   line,
		name:   name,
		pulse:  PulseDuration,
		logger: noopLogger{},
	}, nil
}

// Name returns the actuator's logical name.
func (a *Actuator) Name() string {
	return a.name
}

// SetLogger sets the logger for the actuator.
func (a *Actuator) SetLogger(logger Logger) {
	a.logger = logger
}

// SetOnPulse adds a listener called after every pulse attempt.
func (a *Actuator) SetOnPulse(fn PulseFunc) {
	a.cbMu.Lock()
	a.onPulse = append(a.onPulse, fn)
	a.cbMu.Unlock()
}

// Toggle drives the line active for PulseDuration, then inactive.
//
// If ctx is cancelled mid-pulse the line is released early and ctx.Err()
// is returned. A Toggle issued while another is running blocks until the
// first has released the line. Pulse listeners run after the release.
func (a *Actuator) Toggle(ctx context.Context) error {
	held, err := a.hold(ctx)
	a.notify(held, err)
	return err
}

// hold runs one pulse under pulseMu. The line is driven inactive on every
// path.
func (a *Actuator) hold(ctx context.Context) (held time.Duration, err error) {
	a.pulseMu.Lock()
	defer a.pulseMu.Unlock()

	start := time.Now()
	defer func() {
		if relErr := a.line.Set(false); relErr != nil {
			a.logger.Error("relay release failed", "actuator", a.name, "error", relErr)
			if err == nil {
				err = fmt.Errorf("%w: %s: %w", ErrLineWrite, a.name, relErr)
			}
		}
		held = time.Since(start)
	}()

	if err := a.line.Set(true); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLineWrite, a.name, err)
	}
	a.logger.Debug("relay active", "actuator", a.name)

	timer := time.NewTimer(a.pulse)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		a.logger.Warn("relay pulse interrupted", "actuator", a.name)
		return 0, ctx.Err()
	case <-timer.C:
	}

	a.logger.Info("relay pulsed", "actuator", a.name, "duration_ms", a.pulse.Milliseconds())
	return 0, nil
}

func (a *Actuator) notify(held time.Duration, err error) {
	a.cbMu.RLock()
	listeners := a.onPulse
	a.cbMu.RUnlock()
	for _, fn := range listeners {
		fn(a.name, held, err)
	}
}
