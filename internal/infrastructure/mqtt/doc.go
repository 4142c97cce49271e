// Package mqtt provides the controller's MQTT bus session.
//
// This package manages:
//   - Connection to the broker, created lazily and retried by the caller
//   - Retained state publishing on device/<sensor>
//   - Trigger subscriptions feeding a bounded, ordered inbound queue
//   - Last Will and Testament (LWT) on device/<id>/availability
//
// # Architecture
//
//	door.Monitor ──PublishRetained──▶ Session ──▶ broker
//	router.Run   ◀──Messages()─────── Session ◀── broker
//
// The connectivity supervisor calls Connect after the network has an
// address. Once connected, paho's auto-reconnect handles broker restarts
// while the link stays up; Connect waits for that reconnect rather than
// racing it.
//
// # Bounded Memory
//
// Inbound topics longer than MaxTopicLength and payloads larger than
// MaxPayloadSize are dropped before they reach the queue. The queue holds
// QueueCapacity messages; when it is full, delivery blocks and the broker
// connection applies backpressure.
//
// # Usage
//
//	session := mqtt.NewSession(cfg.MQTT, cfg.Device.ID)
//	defer session.Close()
//
//	_ = session.Subscribe(mqtt.Topics{}.Trigger("door1"), 1)
//	if err := session.Connect(ctx); err != nil {
//	    return err
//	}
//	_ = session.PublishRetained(mqtt.Topics{}.DoorState("door1"), []byte("closed"))
package mqtt
