package relay

import "errors"

var (
	// ErrLineWrite is returned when the output line rejects a level change.
	ErrLineWrite = errors.New("relay: line write failed")

	// ErrNoLine is returned by New when no output line is supplied.
	ErrNoLine = errors.New("relay: no output line")
)
