package models

import "time"

// Group is a streaming group of radio units. All members play the
// group's stream URL (or locally hosted music files when no URL is set).
type Group struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	StreamURL  string   `json:"stream_url,omitempty"`
	MusicFiles []string `json:"music_files,omitempty"`

	// DeviceCount is derived: the number of devices whose group
	// assignment points at this group. The store does not enforce it;
	// the groups sync pass keeps it correct.
	DeviceCount int `json:"device_count"`

	CreatedAt time.Time `json:"created_at"`
}
