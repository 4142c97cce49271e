package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDoor         = "door_state"
	MeasurementPulse        = "pulse"
	MeasurementConnectivity = "connectivity"
)

// WriteDoorState records a debounced sensor state ("open" or "closed").
func (c *Client) WriteDoorState(sensor, state string) {
	open := 0
	if state == "open" {
		open = 1
	}
	c.WritePoint(MeasurementDoor,
		map[string]string{"sensor": sensor},
		map[string]any{
			"state": state,
			"open":  open,
		})
}

// WritePulse records one actuator pulse and how long it was held.
func (c *Client) WritePulse(actuator string, held time.Duration, err error) {
	fields := map[string]any{
		"held_ms": float64(held) / float64(time.Millisecond),
		"ok":      err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.WritePoint(MeasurementPulse, map[string]string{"actuator": actuator}, fields)
}

// WriteConnectivity records a supervisor state change. level is the
// state's position in the connectivity ladder.
func (c *Client) WriteConnectivity(state string, level int) {
	c.WritePoint(MeasurementConnectivity, nil, map[string]any{
		"state": state,
		"level": level,
	})
}

// WritePoint writes a point stamped now. The device_id tag is added to
// tags.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	withDevice := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		withDevice[k] = v
	}
	if c.deviceID != "" {
		withDevice["device_id"] = c.deviceID
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, withDevice, fields, ts))
}
