// Package testutil provides shared test fixtures for Console modules.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/radiorevive/console/pkg/models"
)

// NewDevice returns a Device with sensible defaults, suitable for test fixtures.
// Override individual fields via options or after creation as needed.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		ID:        uuid.New().String(),
		DeviceID:  "radio-" + uuid.New().String()[:8],
		Name:      "Test Radio",
		Status:    models.DeviceStatusOnline,
		IPAddress: "192.168.1.100",
		Volume:    50,
		LastSeen:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithName sets the device name.
func WithName(name string) func(*models.Device) {
	return func(d *models.Device) { d.Name = name }
}

// WithDeviceID sets the hardware identity.
func WithDeviceID(id string) func(*models.Device) {
	return func(d *models.Device) { d.DeviceID = id }
}

// WithIP sets the device's IP address.
func WithIP(ip string) func(*models.Device) {
	return func(d *models.Device) { d.IPAddress = ip }
}

// WithStatus sets the device status.
func WithStatus(s models.DeviceStatus) func(*models.Device) {
	return func(d *models.Device) { d.Status = s }
}

// WithGroup sets the device's group assignment.
func WithGroup(groupID string) func(*models.Device) {
	return func(d *models.Device) { d.GroupID = groupID }
}

// WithStreamURL sets the device's stream URL.
func WithStreamURL(url string) func(*models.Device) {
	return func(d *models.Device) { d.StreamURL = url }
}

// WithLastSeen sets the device's last_seen timestamp.
func WithLastSeen(t time.Time) func(*models.Device) {
	return func(d *models.Device) { d.LastSeen = t }
}

// NewGroup returns a Group with sensible defaults.
func NewGroup(opts ...func(*models.Group)) models.Group {
	g := models.Group{
		ID:        uuid.New().String(),
		Name:      "Test Group",
		StreamURL: "http://streams.example.com/main",
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// WithGroupName sets the group name.
func WithGroupName(name string) func(*models.Group) {
	return func(g *models.Group) { g.Name = name }
}

// WithGroupStream sets the group stream URL.
func WithGroupStream(url string) func(*models.Group) {
	return func(g *models.Group) { g.StreamURL = url }
}

// NewUser returns a User with sensible defaults in the current location.
func NewUser(opts ...func(*models.User)) models.User {
	u := models.User{
		ID:        uuid.New().String(),
		Name:      "Test User",
		Email:     "user@example.com",
		Role:      models.RoleUser,
		Location:  models.LocationCurrent,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithEmail sets the user email.
func WithEmail(email string) func(*models.User) {
	return func(u *models.User) { u.Email = email }
}

// WithRole sets the user role.
func WithRole(role models.UserRole) func(*models.User) {
	return func(u *models.User) { u.Role = role }
}

// WithLocation sets the storage location.
func WithLocation(loc models.UserLocation) func(*models.User) {
	return func(u *models.User) { u.Location = loc }
}

// WithUserDevice sets the user's assigned device.
func WithUserDevice(deviceID string) func(*models.User) {
	return func(u *models.User) { u.DeviceID = deviceID }
}
