//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/garagedoor/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS:       1,
		KeepAlive: 10,
	}
}

func connectIntegration(t *testing.T, clientID string) *Session {
	t.Helper()
	s := NewSession(integrationConfig(clientID), "garagedoor-int")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Skipf("broker not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIntegration_TriggerRoundtrip(t *testing.T) {
	controller := connectIntegration(t, "garagedoor-int-ctrl")
	remote := connectIntegration(t, "garagedoor-int-remote")

	topic := Topics{}.Trigger("int-door")
	if err := controller.Subscribe(topic, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := remote.Publish(topic, []byte("fire"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-controller.Messages():
		if msg.Topic != topic || string(msg.Payload) != "fire" {
			t.Errorf("message = %+v, want %s=fire", msg, topic)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("trigger not received")
	}
}

func TestIntegration_RetainedState(t *testing.T) {
	publisher := connectIntegration(t, "garagedoor-int-pub")

	topic := Topics{}.DoorState("int-door-retained")
	if err := publisher.PublishRetained(topic, []byte("open")); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	// A late subscriber sees the retained state.
	late := connectIntegration(t, "garagedoor-int-late")
	if err := late.Subscribe(topic, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case msg := <-late.Messages():
		if string(msg.Payload) != "open" {
			t.Errorf("retained payload = %q, want open", msg.Payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("retained state not received")
	}

	// Clear the retained message.
	_ = publisher.Publish(topic, nil, 1, true)
}
