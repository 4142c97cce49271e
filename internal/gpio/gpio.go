package gpio

import (
	"fmt"
	"strings"
	"sync"
)

// Driver names accepted by Lookup.
const (
	DriverRPIO     = "rpio"
	DriverMCP23017 = "mcp23017"
	DriverSim      = "sim"
)

// InputLine reads a single boolean line with a fixed idle pull state.
//
// Level is synchronous and never fails; drivers that can fail a read report
// the idle (pulled-up) level instead.
type InputLine interface {
	Level() bool
}

// OutputLine drives a single boolean line. Lines start inactive (low).
type OutputLine interface {
	Set(level bool) error
	Level() bool
}

// Driver allocates lines on one piece of hardware.
type Driver interface {
	// Open initialises the hardware. Failure is fatal to the caller.
	Open() error

	// Input claims pin as a pulled-up input.
	Input(pin uint16) (InputLine, error)

	// Output claims pin as an output driven low.
	Output(pin uint16) (OutputLine, error)

	// Close drives every claimed output low and releases the hardware.
	Close() error

	String() string
}

// Options carries driver-specific settings from configuration.
type Options struct {
	// InvertOutputs drives the physical line low for an active level,
	// for relay boards with active-low inputs.
	InvertOutputs bool

	// MCPBus is the I2C bus number of the MCP23017 expander.
	MCPBus uint8

	// MCPAddress is the device index (A2..A0) of the MCP23017 expander.
	MCPAddress uint8
}

// Lookup returns the driver registered under name, configured with opts.
func Lookup(name string, opts Options) (Driver, error) {
	switch strings.ToLower(name) {
	case DriverRPIO:
		return &RPiDriver{InvertOutputs: opts.InvertOutputs}, nil
	case DriverMCP23017:
		return &MCP23017Driver{
			Bus:           opts.MCPBus,
			Address:       opts.MCPAddress,
			InvertOutputs: opts.InvertOutputs,
		}, nil
	case DriverSim:
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// claimSet records which pins have an owner.
type claimSet struct {
	mu   sync.Mutex
	pins map[uint16]string
}

// claim marks pin as owned for the given direction.
func (c *claimSet) claim(pin uint16, direction string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pins == nil {
		c.pins = make(map[uint16]string)
	}
	if owner, taken := c.pins[pin]; taken {
		return fmt.Errorf("%w: pin %d (%s)", ErrPinClaimed, pin, owner)
	}
	c.pins[pin] = direction
	return nil
}

// reset forgets all claims.
func (c *claimSet) reset() {
	c.mu.Lock()
	c.pins = nil
	c.mu.Unlock()
}
