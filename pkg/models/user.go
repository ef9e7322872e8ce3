package models

import "time"

// UserRole distinguishes store staff from administrators.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// UserLocation identifies which storage location a user record lives in.
// The legacy location predates the config migration and is kept readable
// until every record has been moved.
type UserLocation string

const (
	LocationCurrent UserLocation = "current"
	LocationLegacy  UserLocation = "legacy"
)

// User is a per-store account. Records may reside in either of two
// storage locations; Location records where this one was read from.
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`

	Location  UserLocation `json:"location,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
