package mqtt

import (
	"fmt"
)

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "device/door1"); non-empty,
//     wildcard free, at most MaxTopicLength bytes
//   - payload: The message payload, at most MaxPayloadSize bytes
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (waits for PUBACK, may duplicate)
//   - 2: Exactly once (higher overhead)
//
// Retained Messages:
//   - Use for state topics (door state, availability)
//   - Don't use for trigger commands
//
// Returns:
//   - error: nil on success, ErrNotConnected while the session is down, or
//     a wrapped ErrInvalidTopic, ErrInvalidQoS or ErrPublishFailed
//
// Example:
//
//	topic := mqtt.Topics{}.DoorState("door1")
//	err := session.Publish(topic, []byte("closed"), 1, true)
func (s *Session) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !validPublishTopic(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), MaxPayloadSize)
	}

	if !s.IsConnected() {
		return ErrNotConnected
	}

	token := s.currentClient().Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured QoS.
//
// Use for state updates where new subscribers should receive the current state.
func (s *Session) PublishRetained(topic string, payload []byte) error {
	return s.Publish(topic, payload, s.qos, true)
}
