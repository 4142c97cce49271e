// Package relay drives the momentary pulse that operates a door opener.
//
// An Actuator owns one output line. Toggle drives the line active for
// PulseDuration and then back to inactive, so the opener sees the same
// signal as a press of the wall button.
//
// # Guarantees
//
//   - The line is inactive when New returns.
//   - The line is inactive after every Toggle, including one interrupted by
//     context cancellation or a failed line write.
//   - At most one pulse is in flight per actuator. A concurrent Toggle waits
//     for the running pulse to finish and then pulses again.
//
// # Usage
//
//	act, err := relay.New(line, "door1")
//	if err != nil {
//	    return err
//	}
//	if err := act.Toggle(ctx); err != nil {
//	    log.Warn("pulse failed", "error", err)
//	}
package relay
