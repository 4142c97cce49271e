package connectivity

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// Timing constants.
const (
	// PollInterval is how often link and address are checked.
	PollInterval = 500 * time.Millisecond

	// RetryDelay is the fixed backoff after any failure or link loss.
	RetryDelay = 5 * time.Second
)

// Radio associates the controller with the access point.
type Radio interface {
	// IsStarted reports whether client mode is running.
	IsStarted() bool
	// Start brings up client mode.
	Start(ctx context.Context) error
	// Connect performs one association attempt.
	Connect(ctx context.Context) error
	// IsAssociated reports the current association.
	IsAssociated() bool
	// WaitForDisconnect blocks until association is lost.
	WaitForDisconnect(ctx context.Context) error
}

// Stack reports network layer progress on the associated link.
type Stack interface {
	LinkUp() bool
	Address() (netip.Addr, bool)
}

// Session is the bus connection established once an address is held.
type Session interface {
	Connect(ctx context.Context) error
	IsConnected() bool
}

// Logger defines the logging interface for the supervisor.
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

// StateChangeFunc observes every state transition.
type StateChangeFunc func(from, to State)

// errSessionLost ends a hold when the bus drops while the link stays up.
var errSessionLost = errors.New("connectivity: bus session lost")

// errAssociationLost ends a link or address poll when the radio drops
// before the attempt completes.
var errAssociationLost = errors.New("connectivity: association lost")

// Supervisor runs the connection lifecycle.
type Supervisor struct {
	radio   Radio
	stack   Stack
	session Session

	poll       time.Duration
	retryDelay time.Duration

	state    atomic.Int32
	attempts atomic.Uint64

	// changed is closed and replaced on every transition.
	changed chan struct{}
	mu      sync.Mutex

	logger   Logger
	onChange []StateChangeFunc
}

// NewSupervisor creates a supervisor in the Disconnected state.
func NewSupervisor(radio Radio, stack Stack, session Session) *Supervisor {
	return &Supervisor{
		radio:      radio,
		stack:      stack,
		session:    session,
		poll:       PollInterval,
		retryDelay: RetryDelay,
		changed:    make(chan struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnStateChange adds a listener for transitions. Must be called before Run.
func (s *Supervisor) SetOnStateChange(fn StateChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// State returns the current state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Attempts returns the number of association attempts made so far.
func (s *Supervisor) Attempts() uint64 {
	return s.attempts.Load()
}

// WaitFor blocks until the supervisor is in state (or a later one).
func (s *Supervisor) WaitFor(ctx context.Context, state State) error {
	for {
		s.mu.Lock()
		changed := s.changed
		current := s.State()
		s.mu.Unlock()

		if current >= state {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Run supervises the connection until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("connectivity supervisor started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.State() == BusConnected {
			err := s.hold(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, errSessionLost) {
				s.logger.Warn("bus session lost")
				s.setState(AddressAcquired)
			} else {
				s.logger.Warn("link disconnected", "error", err)
				s.setState(Disconnected)
			}
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if !s.radio.IsStarted() {
			s.logger.Info("starting client mode")
			if err := s.radio.Start(ctx); err != nil {
				s.logger.Error("client mode start failed", "error", err)
				if err := s.sleep(ctx); err != nil {
					return err
				}
				continue
			}
		}

		if !s.radio.IsAssociated() {
			s.setState(Disconnected)
			n := s.attempts.Add(1)
			s.logger.Info("associating", "attempt", n)
			if err := s.radio.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("association failed", "attempt", n, "error", err)
				if err := s.sleep(ctx); err != nil {
					return err
				}
				continue
			}
			s.logger.Info("associated", "attempt", n)
		}

		if err := s.pollUntil(ctx, s.stack.LinkUp); err != nil {
			if err := s.restart(ctx, err); err != nil {
				return err
			}
			continue
		}
		s.advance(LinkUp)

		var addr netip.Addr
		if err := s.pollUntil(ctx, func() bool {
			var ok bool
			addr, ok = s.stack.Address()
			return ok
		}); err != nil {
			if err := s.restart(ctx, err); err != nil {
				return err
			}
			continue
		}
		if s.advance(AddressAcquired) {
			s.logger.Info("address acquired", "address", addr.String())
		}

		if err := s.session.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("bus connection failed", "error", err)
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		s.advance(BusConnected)
	}
}

// hold waits in BusConnected until the radio disassociates or the bus
// session drops.
func (s *Supervisor) hold(ctx context.Context) error {
	holdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	radioErr := make(chan error, 1)
	go func() {
		err := s.radio.WaitForDisconnect(holdCtx)
		if err == nil {
			err = errors.New("association lost")
		}
		radioErr <- err
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case err := <-radioErr:
			return err
		case <-ticker.C:
			if !s.session.IsConnected() {
				return errSessionLost
			}
		}
	}
}

// pollUntil checks cond every poll interval until it holds. It gives up
// with errAssociationLost once the radio is no longer associated.
func (s *Supervisor) pollUntil(ctx context.Context, cond func() bool) error {
	check := func() (bool, error) {
		if !s.radio.IsAssociated() {
			return false, errAssociationLost
		}
		return cond(), nil
	}

	if ok, err := check(); ok || err != nil {
		return err
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ok, err := check(); ok || err != nil {
				return err
			}
		}
	}
}

// restart abandons the current attempt after a failed poll. Association
// loss resets to Disconnected and waits out the retry delay.
func (s *Supervisor) restart(ctx context.Context, err error) error {
	if !errors.Is(err, errAssociationLost) {
		return err
	}
	s.logger.Warn("association lost before bus connection", "state", s.State().String())
	s.setState(Disconnected)
	return s.sleep(ctx)
}

// sleep waits out the retry delay.
func (s *Supervisor) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.retryDelay):
		return nil
	}
}

// advance moves forward to state. It reports false when already there.
func (s *Supervisor) advance(state State) bool {
	if s.State() >= state {
		return false
	}
	s.setState(state)
	return true
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	from := State(s.state.Swap(int32(to)))
	if from == to {
		s.mu.Unlock()
		return
	}
	close(s.changed)
	s.changed = make(chan struct{})
	listeners := s.onChange
	s.mu.Unlock()

	s.logger.Info("connectivity state changed", "from", from.String(), "to", to.String())
	for _, fn := range listeners {
		fn(from, to)
	}
}
