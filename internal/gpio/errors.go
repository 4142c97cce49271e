package gpio

import "errors"

// Sentinel errors for line allocation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDriver is returned by Lookup for an unrecognised driver name.
	ErrUnknownDriver = errors.New("gpio: unknown driver")

	// ErrOpenFailed is returned when the underlying hardware cannot be opened.
	ErrOpenFailed = errors.New("gpio: open failed")

	// ErrNotOpen is returned when lines are requested before Open.
	ErrNotOpen = errors.New("gpio: driver not open")

	// ErrPinClaimed is returned when a pin already has an owner.
	ErrPinClaimed = errors.New("gpio: pin already claimed")

	// ErrPinOutOfRange is returned for a pin number the driver cannot address.
	ErrPinOutOfRange = errors.New("gpio: pin out of range")
)
