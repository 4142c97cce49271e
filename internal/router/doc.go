// Package router turns inbound bus messages into actuator pulses.
//
// The router is built once at startup from the configured actuators and is
// the single consumer of the session's inbound queue. A message triggers an
// actuator when its topic is exactly device/<actuator>_trigger and its
// payload is exactly the UTF-8 text "fire". Everything else is dropped
// without a reply.
//
// Pulses run synchronously on the router goroutine, so a second trigger for
// any actuator is handled only after the current pulse completes.
package router
