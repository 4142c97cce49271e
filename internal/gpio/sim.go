package gpio

import (
	"sync"
	"sync/atomic"
)

// SimDriver is an in-memory driver. Inputs idle high (pulled up) until a
// test or bench harness sets them; outputs record every level written.
type SimDriver struct {
	claims claimSet

	mu      sync.Mutex
	open    bool
	inputs  map[uint16]*SimInput
	outputs map[uint16]*SimOutput
}

// NewSim creates a closed simulated driver.
func NewSim() *SimDriver {
	return &SimDriver{
		inputs:  make(map[uint16]*SimInput),
		outputs: make(map[uint16]*SimOutput),
	}
}

// SimInput is an input line whose level is set programmatically.
type SimInput struct {
	level atomic.Bool
}

// NewSimInput creates a standalone input at the given level.
func NewSimInput(level bool) *SimInput {
	in := &SimInput{}
	in.level.Store(level)
	return in
}

// Level implements InputLine.
func (i *SimInput) Level() bool {
	return i.level.Load()
}

// SetLevel changes what the line reads.
func (i *SimInput) SetLevel(level bool) {
	i.level.Store(level)
}

// SimOutput is an output line that records its transitions.
type SimOutput struct {
	mu      sync.Mutex
	level   bool
	history []bool
	notify  chan bool
}

// NewSimOutput creates a standalone output at the inactive level.
func NewSimOutput() *SimOutput {
	return &SimOutput{}
}

// Set implements OutputLine.
func (o *SimOutput) Set(level bool) error {
	o.mu.Lock()
	o.level = level
	o.history = append(o.history, level)
	notify := o.notify
	o.mu.Unlock()

	if notify != nil {
		select {
		case notify <- level:
		default:
		}
	}
	return nil
}

// Level implements OutputLine.
func (o *SimOutput) Level() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

// History returns every level written, oldest first.
func (o *SimOutput) History() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]bool, len(o.history))
	copy(out, o.history)
	return out
}

// Watch returns a channel receiving each level written after the call.
// Writes are dropped if the channel buffer (size) is full.
func (o *SimOutput) Watch(size int) <-chan bool {
	ch := make(chan bool, size)
	o.mu.Lock()
	o.notify = ch
	o.mu.Unlock()
	return ch
}

// Open implements Driver.
func (d *SimDriver) Open() error {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

// Input implements Driver.
func (d *SimDriver) Input(pin uint16) (InputLine, error) {
	if err := d.prepare(pin, "input"); err != nil {
		return nil, err
	}
	in := NewSimInput(true)

	d.mu.Lock()
	d.inputs[pin] = in
	d.mu.Unlock()
	return in, nil
}

// Output implements Driver.
func (d *SimDriver) Output(pin uint16) (OutputLine, error) {
	if err := d.prepare(pin, "output"); err != nil {
		return nil, err
	}
	out := NewSimOutput()
	_ = out.Set(false)

	d.mu.Lock()
	d.outputs[pin] = out
	d.mu.Unlock()
	return out, nil
}

func (d *SimDriver) prepare(pin uint16, direction string) error {
	d.mu.Lock()
	open := d.open
	d.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	return d.claims.claim(pin, direction)
}

// SimInput returns the claimed input on pin, if any.
func (d *SimDriver) SimInput(pin uint16) (*SimInput, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	in, ok := d.inputs[pin]
	return in, ok
}

// SimOutput returns the claimed output on pin, if any.
func (d *SimDriver) SimOutput(pin uint16) (*SimOutput, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, ok := d.outputs[pin]
	return out, ok
}

// Close implements Driver.
func (d *SimDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, out := range d.outputs {
		_ = out.Set(false)
	}
	d.open = false
	d.claims.reset()
	return nil
}

func (d *SimDriver) String() string {
	return DriverSim
}
