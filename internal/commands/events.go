package commands

import (
	"time"

	"github.com/radiorevive/console/pkg/plugin"
)

// Event topics published by the commands module.
const (
	// TopicChanged fires after every append or processed transition so
	// live views can re-read the queue.
	TopicChanged = "commands.changed"

	// TopicDispatched fires once per appended command.
	TopicDispatched = "commands.dispatched"
)

// DispatchedEvent is the payload for TopicDispatched.
type DispatchedEvent struct {
	CommandID string `json:"command_id"`
	DeviceID  string `json:"device_id"`
	Action    string `json:"action"`
}

func pluginEvent(topic string, payload any) plugin.Event {
	return plugin.Event{
		Topic:     topic,
		Source:    "commands",
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
