package ws

import "time"

// MessageType discriminates WebSocket messages. Snapshot types are derived
// from the collection name, e.g. "devices.snapshot".
type MessageType string

const (
	MessageError MessageType = "error"
)

// SnapshotType returns the message type for a collection snapshot.
func SnapshotType(collection string) MessageType {
	return MessageType(collection + ".snapshot")
}

// Message is the envelope for all WebSocket messages. Data carries the full
// collection contents for snapshot messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ErrorData is the payload for error messages.
type ErrorData struct {
	Collection string `json:"collection"`
	Error      string `json:"error"`
}
