// Package influxdb records controller history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library, writing one
// measurement per event kind:
//
//   - door_state: debounced sensor states (tags device_id, sensor)
//   - pulse: actuator pulses (tags device_id, actuator)
//   - connectivity: supervisor state changes (tag device_id)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDoorState("door1", "open")
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async write failures are delivered to the SetOnError
// callback; connection and health check errors are returned directly.
package influxdb
