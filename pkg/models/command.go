package models

import "time"

// CommandAction identifies what the device agent should do.
type CommandAction string

const (
	ActionPlay          CommandAction = "play"
	ActionPause         CommandAction = "pause"
	ActionStop          CommandAction = "stop"
	ActionVolume        CommandAction = "volume"
	ActionWifiConfig    CommandAction = "configure_wifi"
	ActionNetworkConfig CommandAction = "network_config"
	ActionSystemUpdate  CommandAction = "system_update"
)

// Command is one immutable entry in the global command queue, addressed
// to exactly one device. The console only ever appends; the device agent
// consumes entries and owns the Processed transition. Which payload
// fields are set depends on Action.
type Command struct {
	ID       string        `json:"id"`
	DeviceID string        `json:"device_id"`
	Action   CommandAction `json:"action"`

	// Playback payload (play/pause/stop).
	StreamURL string `json:"stream_url,omitempty"`

	// Volume payload.
	Volume *int `json:"volume,omitempty"`

	// Wifi payload. The passphrase travels in cleartext, matching the
	// agent protocol; the queue is not a credential store.
	SSID     string `json:"ssid,omitempty"`
	Password string `json:"password,omitempty"`

	// Static network payload.
	IPAddress string `json:"ip_address,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
	DNS1      string `json:"dns1,omitempty"`
	DNS2      string `json:"dns2,omitempty"`
	Interface string `json:"interface,omitempty"`

	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}
