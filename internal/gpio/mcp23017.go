package gpio

import (
	"fmt"
	"sync"

	"github.com/racerxdl/go-mcp23017"
)

// maxMCPPin is the highest pin on the 16-bit expander (GPA0..GPB7).
const maxMCPPin = 15

// MCP23017Driver drives lines on an MCP23017 I2C port expander.
//
// All lines share one I2C device, so bus access is serialised by the driver.
type MCP23017Driver struct {
	Bus           uint8
	Address       uint8
	InvertOutputs bool

	claims  claimSet
	mu      sync.Mutex
	device  *mcp23017.Device
	outputs []*mcpOutput
}

type mcpInput struct {
	pin uint8
	drv *MCP23017Driver
}

// Level reads the pin. A failed bus read reports the idle pull-up level.
func (i *mcpInput) Level() bool {
	i.drv.mu.Lock()
	defer i.drv.mu.Unlock()

	if i.drv.device == nil {
		return true
	}
	level, err := i.drv.device.DigitalRead(i.pin)
	if err != nil {
		return true
	}
	return bool(level)
}

type mcpOutput struct {
	pin    uint8
	invert bool
	drv    *MCP23017Driver
	level  bool
}

// Set drives the pin; level true is the active state.
func (o *mcpOutput) Set(level bool) error {
	o.drv.mu.Lock()
	defer o.drv.mu.Unlock()
	return o.setLocked(level)
}

func (o *mcpOutput) setLocked(level bool) error {
	if o.drv.device == nil {
		return ErrNotOpen
	}
	if err := o.drv.device.DigitalWrite(o.pin, mcp23017.PinLevel(level != o.invert)); err != nil {
		return fmt.Errorf("mcp23017 write pin %d: %w", o.pin, err)
	}
	o.level = level
	return nil
}

// Level reports the last level written.
func (o *mcpOutput) Level() bool {
	o.drv.mu.Lock()
	defer o.drv.mu.Unlock()
	return o.level
}

// Open connects to the expander on the configured bus.
func (d *MCP23017Driver) Open() error {
	device, err := mcp23017.Open(d.Bus, d.Address)
	if err != nil {
		return fmt.Errorf("%w: mcp23017 bus %d addr %d: %w", ErrOpenFailed, d.Bus, d.Address, err)
	}
	d.mu.Lock()
	d.device = device
	d.mu.Unlock()
	return nil
}

// Input claims pin as an input with the expander's pull-up enabled.
func (d *MCP23017Driver) Input(pin uint16) (InputLine, error) {
	if err := d.prepare(pin, "input"); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.device.PinMode(uint8(pin), mcp23017.INPUT); err != nil {
		return nil, fmt.Errorf("mcp23017 pin %d mode: %w", pin, err)
	}
	if err := d.device.SetPullUp(uint8(pin), true); err != nil {
		return nil, fmt.Errorf("mcp23017 pin %d pull-up: %w", pin, err)
	}
	return &mcpInput{pin: uint8(pin), drv: d}, nil
}

// Output claims pin as an output and drives it inactive.
func (d *MCP23017Driver) Output(pin uint16) (OutputLine, error) {
	if err := d.prepare(pin, "output"); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.device.PinMode(uint8(pin), mcp23017.OUTPUT); err != nil {
		return nil, fmt.Errorf("mcp23017 pin %d mode: %w", pin, err)
	}
	out := &mcpOutput{pin: uint8(pin), invert: d.InvertOutputs, drv: d}
	if err := out.setLocked(false); err != nil {
		return nil, err
	}
	d.outputs = append(d.outputs, out)
	return out, nil
}

func (d *MCP23017Driver) prepare(pin uint16, direction string) error {
	d.mu.Lock()
	open := d.device != nil
	d.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	if pin > maxMCPPin {
		return fmt.Errorf("%w: %d (mcp23017 has 16 pins)", ErrPinOutOfRange, pin)
	}
	return d.claims.claim(pin, direction)
}

// Close drives all outputs low and releases the I2C device.
func (d *MCP23017Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}
	for _, out := range d.outputs {
		_ = out.setLocked(false)
	}
	d.outputs = nil
	d.claims.reset()

	err := d.device.Close()
	d.device = nil
	return err
}

func (d *MCP23017Driver) String() string {
	return DriverMCP23017
}
