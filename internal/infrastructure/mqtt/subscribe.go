package mqtt

import (
	"fmt"
)

// Subscribe routes messages on topic into the inbound queue.
//
// The subscription is tracked and restored on every reconnection. When the
// session is not connected, the topic is recorded and applied on the next
// connect; nil is returned.
func (s *Session) Subscribe(topic string, qos byte) error {
	if topic == "" || len(topic) > MaxTopicLength {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	s.subMu.Lock()
	s.subscriptions[topic] = qos
	s.subMu.Unlock()

	if !s.IsConnected() {
		return nil
	}

	token := s.currentClient().Subscribe(topic, qos, s.deliver)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (s *Session) SubscriptionCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscriptions)
}

// HasSubscription checks if a subscription exists for the given topic.
//
// Note: This checks only the exact topic string, not pattern matching.
func (s *Session) HasSubscription(topic string) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	_, exists := s.subscriptions[topic]
	return exists
}
