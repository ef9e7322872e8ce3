package fleet

import (
	"time"

	"github.com/radiorevive/console/pkg/plugin"
)

// Event topics published by the fleet module.
const (
	// TopicChanged fires after any mutation of the device collection.
	// Subscribers re-read the collection rather than patching state.
	TopicChanged = "fleet.changed"

	TopicDeviceLost    = "fleet.device.lost"
	TopicDeviceCheckin = "fleet.device.checkin"
)

// DeviceLostEvent is the payload for TopicDeviceLost events.
type DeviceLostEvent struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	IP       string    `json:"ip"`
	LastSeen time.Time `json:"last_seen"`
}

// CheckinEvent is the payload for TopicDeviceCheckin events.
type CheckinEvent struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	IP       string `json:"ip"`
}

// pluginEvent stamps a fleet-sourced event.
func pluginEvent(topic string, payload any) plugin.Event {
	return plugin.Event{
		Topic:     topic,
		Source:    "fleet",
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
