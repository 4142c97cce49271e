// Package metrics exposes controller counters and gauges in Prometheus
// format.
//
// A Metrics value owns its own registry so tests and multiple instances
// never collide on the global default registerer. The Observe methods
// match the callback signatures of the door, relay, router, and
// connectivity packages so they can be passed straight to the
// corresponding SetOn hooks.
package metrics
