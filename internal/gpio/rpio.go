package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// maxRPiPin is the highest BCM pin number addressable through rpio.
const maxRPiPin = 255

// RPiDriver drives the Raspberry Pi SoC GPIO through /dev/gpiomem.
type RPiDriver struct {
	InvertOutputs bool

	claims  claimSet
	mu      sync.Mutex
	outputs []*rpiOutput
	open    bool
}

type rpiInput struct {
	pin rpio.Pin
}

// Level reports true when the pulled-up line reads high.
func (i *rpiInput) Level() bool {
	return i.pin.Read() == rpio.High
}

type rpiOutput struct {
	pin    rpio.Pin
	invert bool
}

// Set drives the line; level true is the active state.
func (o *rpiOutput) Set(level bool) error {
	if level != o.invert {
		o.pin.High()
	} else {
		o.pin.Low()
	}
	return nil
}

// Level reports the logical state of the line.
func (o *rpiOutput) Level() bool {
	return (o.pin.Read() == rpio.High) != o.invert
}

// Open maps the GPIO registers.
func (d *RPiDriver) Open() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("%w: rpio: %w", ErrOpenFailed, err)
	}
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

// Input claims pin as an input with the internal pull-up enabled.
func (d *RPiDriver) Input(pin uint16) (InputLine, error) {
	if err := d.prepare(pin, "input"); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return &rpiInput{pin: p}, nil
}

// Output claims pin as an output and drives it inactive.
func (d *RPiDriver) Output(pin uint16) (OutputLine, error) {
	if err := d.prepare(pin, "output"); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Output()
	out := &rpiOutput{pin: p, invert: d.InvertOutputs}
	_ = out.Set(false)

	d.mu.Lock()
	d.outputs = append(d.outputs, out)
	d.mu.Unlock()
	return out, nil
}

func (d *RPiDriver) prepare(pin uint16, direction string) error {
	d.mu.Lock()
	open := d.open
	d.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	if pin > maxRPiPin {
		return fmt.Errorf("%w: %d (rpio takes uint8 pin)", ErrPinOutOfRange, pin)
	}
	return d.claims.claim(pin, direction)
}

// Close drives all outputs low and unmaps the registers.
func (d *RPiDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	for _, out := range d.outputs {
		_ = out.Set(false)
	}
	d.outputs = nil
	d.open = false
	d.claims.reset()
	return rpio.Close()
}

func (d *RPiDriver) String() string {
	return DriverRPIO
}
