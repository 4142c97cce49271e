// Package door implements the door-position sensor state machine.
//
// A Sensor derives a State from one pulled-up input line: high is Open,
// low (reed contact closed to ground) is Closed. The Monitor loop built on
// the sensor publishes the state once at start and again on every debounced
// transition, as a retained message on device/<sensor-name>.
//
// # Debounce
//
// WaitForChange only reports a transition that holds continuously for the
// whole debounce window. The line is sampled every debounceSample during the
// window; a bounce back to the original level discards the candidate and the
// sensor resumes waiting. Publications are therefore never issued for
// contact chatter shorter than the window.
//
// # Usage
//
//	sensor := door.NewSensor(line, "door1")
//	mon := door.NewMonitor(sensor, mqttSession)
//	mon.SetLogger(log)
//	go mon.Run(ctx) // never returns until ctx is cancelled
package door
