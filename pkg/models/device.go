package models

import "time"

// DeviceStatus represents the current state of a radio unit as last
// reported by its on-device agent.
type DeviceStatus string

const (
	DeviceStatusOnline       DeviceStatus = "online"
	DeviceStatusOffline      DeviceStatus = "offline"
	DeviceStatusPlaying      DeviceStatus = "playing"
	DeviceStatusPaused       DeviceStatus = "paused"
	DeviceStatusUnconfigured DeviceStatus = "unconfigured"
)

// KnownDeviceStatus reports whether s is one of the recognized statuses.
// Unknown statuses are projected to offline.
func KnownDeviceStatus(s DeviceStatus) bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusPlaying,
		DeviceStatusPaused, DeviceStatusUnconfigured:
		return true
	}
	return false
}

// DefaultDeviceName is the placeholder shown for devices that registered
// without a name.
const DefaultDeviceName = "Unnamed Radio"

// Device is the normalized view of a radio unit consumed by every page
// of the console. Raw stored rows may carry legacy field names and
// missing telemetry; the fleet projector resolves those before a Device
// ever leaves the fleet package.
type Device struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id,omitempty"` // hardware identity reported by the agent
	Name     string `json:"name"`

	Status            DeviceStatus `json:"status"`
	IPAddress         string       `json:"ip_address,omitempty"`
	WifiConnected     bool         `json:"wifi_connected"`
	EthernetConnected bool         `json:"ethernet_connected"`

	GroupID   string `json:"group_id,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
	Volume    int    `json:"volume"`

	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	UptimeSec   int64   `json:"uptime_sec"`

	FirmwareVersion string `json:"firmware_version,omitempty"`

	// LastSeen is written by the device agent, never by the console.
	// When the stored row has no value the projector substitutes the
	// current time as a display fallback; LastSeenEstimated marks that
	// case so freshness calculations are not misled.
	LastSeen          time.Time `json:"last_seen"`
	LastSeenEstimated bool      `json:"last_seen_estimated,omitempty"`
}
