// Package gpio provides the digital input and output lines the controller
// core is built on.
//
// A Driver hands out lines by pin number. Each pin can be claimed exactly
// once per driver, so every line has a single owner: a door sensor owns its
// input, a relay owns its output. Line access is synchronous and never
// blocks.
//
// # Drivers
//
//   - rpio: Raspberry Pi SoC GPIO (inputs pulled up, outputs start low)
//   - mcp23017: MCP23017 I2C port expander
//   - sim: in-memory lines for tests and bench runs
//
// # Usage
//
//	drv, err := gpio.Lookup("rpio", gpio.Options{})
//	if err != nil {
//	    return err
//	}
//	if err := drv.Open(); err != nil {
//	    return err // hardware unavailable: fatal
//	}
//	defer drv.Close()
//
//	in, err := drv.Input(4)
//	out, err := drv.Output(2)
package gpio
