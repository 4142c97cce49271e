package mqtt

import "strings"

// TopicPrefix is the root of every topic this controller uses.
const TopicPrefix = "device"

// Topic suffixes.
const (
	triggerSuffix      = "_trigger"
	availabilitySuffix = "/availability"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics provides builders for the controller's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DoorState("door1")     // "device/door1"
//	topics.Trigger("door1")       // "device/door1_trigger"
//	topics.Availability("garage") // "device/garage/availability"
type Topics struct{}

// DoorState returns the retained state topic for a sensor.
func (Topics) DoorState(sensor string) string {
	return TopicPrefix + "/" + sensor
}

// Trigger returns the command topic for an actuator.
func (Topics) Trigger(actuator string) string {
	return TopicPrefix + "/" + actuator + triggerSuffix
}

// Availability returns the online/offline topic for a device.
func (Topics) Availability(deviceID string) string {
	return TopicPrefix + "/" + deviceID + availabilitySuffix
}

// validPublishTopic reports whether topic can be published to: not empty,
// within the length limit, and free of wildcards.
func validPublishTopic(topic string) bool {
	return topic != "" && len(topic) <= MaxTopicLength && !strings.ContainsAny(topic, "+#")
}
