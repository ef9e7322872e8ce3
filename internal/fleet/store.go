package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
)

// ErrNotFound is returned when a device lookup finds no row.
var ErrNotFound = errors.New("device not found")

// Store provides database operations for the fleet module.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DeviceRow is the raw stored form of a device. Legacy writers left group
// assignments in legacy_group and stream URLs in current_url; the projector
// resolves those, so rows never leave the package undigested.
type DeviceRow struct {
	ID                string
	DeviceID          string
	Name              string
	Status            string
	IPAddress         string
	WifiConnected     bool
	EthernetConnected bool
	GroupID           sql.NullString
	LegacyGroup       sql.NullString
	StreamURL         string
	CurrentURL        string
	Volume            int
	CPUUsage          float64
	MemoryUsage       float64
	DiskUsage         float64
	UptimeSec         int64
	FirmwareVersion   string
	LastSeen          sql.NullTime
}

// EffectiveGroup resolves the group assignment, preferring the current
// field over the legacy one.
func (r *DeviceRow) EffectiveGroup() string {
	if r.GroupID.Valid && r.GroupID.String != "" {
		return r.GroupID.String
	}
	if r.LegacyGroup.Valid {
		return r.LegacyGroup.String
	}
	return ""
}

const deviceColumns = `id, device_id, name, status, ip_address,
	wifi_connected, ethernet_connected, group_id, legacy_group,
	stream_url, current_url, volume, cpu_usage, memory_usage, disk_usage,
	uptime_sec, firmware_version, last_seen`

// CreateParams carries the fields accepted when registering a device.
type CreateParams struct {
	DeviceID  string
	Name      string
	Status    string
	IPAddress string
	GroupID   string
	StreamURL string
	Volume    int
}

// Create inserts a new device and returns its generated ID.
func (s *Store) Create(ctx context.Context, p CreateParams) (string, error) {
	id := uuid.New().String()

	var groupID any
	if p.GroupID != "" {
		groupID = p.GroupID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fleet_devices (id, device_id, name, status, ip_address, group_id, stream_url, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.DeviceID, p.Name, p.Status, p.IPAddress, groupID, p.StreamURL, p.Volume,
	)
	if err != nil {
		return "", fmt.Errorf("insert device: %w", err)
	}
	return id, nil
}

// Get returns a raw device row by ID.
func (s *Store) Get(ctx context.Context, id string) (*DeviceRow, error) {
	return scanRow(s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM fleet_devices WHERE id = ?", id))
}

// GetByDeviceID returns the raw row for a hardware identity, or ErrNotFound.
func (s *Store) GetByDeviceID(ctx context.Context, deviceID string) (*DeviceRow, error) {
	return scanRow(s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM fleet_devices WHERE device_id = ? ORDER BY last_seen DESC LIMIT 1", deviceID))
}

// List returns all raw device rows ordered by name.
func (s *Store) List(ctx context.Context) ([]DeviceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM fleet_devices ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRow
	for rows.Next() {
		r, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListProjected returns the full collection in normalized form.
func (s *Store) ListProjected(ctx context.Context) ([]models.Device, error) {
	raw, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Device, 0, len(raw))
	for i := range raw {
		out = append(out, Project(&raw[i]))
	}
	return out, nil
}

// UpdateParams is a partial device update. Keep fields are untouched; a
// cleared GroupID erases both the current and legacy assignment fields.
type UpdateParams struct {
	Name      patch.Field[string]
	Status    patch.Field[string]
	IPAddress patch.Field[string]
	GroupID   patch.Field[string]
	StreamURL patch.Field[string]
	Volume    patch.Field[int]
	DeviceID  patch.Field[string]
}

// Update applies a partial update. Returns ErrNotFound if no row matched.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) error {
	var sets []string
	var args []any

	setString := func(col string, f patch.Field[string]) {
		if v, ok := f.Value(); ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		} else if f.IsClear() {
			sets = append(sets, col+" = ''")
		}
	}

	setString("name", p.Name)
	setString("status", p.Status)
	setString("ip_address", p.IPAddress)
	setString("stream_url", p.StreamURL)
	setString("device_id", p.DeviceID)

	if v, ok := p.GroupID.Value(); ok {
		sets = append(sets, "group_id = ?", "legacy_group = ?")
		args = append(args, v, v)
	} else if p.GroupID.IsClear() {
		sets = append(sets, "group_id = NULL", "legacy_group = NULL")
	}

	if v, ok := p.Volume.Value(); ok {
		sets = append(sets, "volume = ?")
		args = append(args, v)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE fleet_devices SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a device. Deleting an absent ID is not an error; the
// bool reports whether a row was actually removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM fleet_devices WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CheckinParams carries an agent heartbeat report.
type CheckinParams struct {
	DeviceID          string
	Name              string
	Status            string
	IPAddress         string
	WifiConnected     bool
	EthernetConnected bool
	StreamURL         string
	Volume            int
	CPUUsage          float64
	MemoryUsage       float64
	DiskUsage         float64
	UptimeSec         int64
	FirmwareVersion   string
}

// Checkin upserts an agent report keyed by hardware identity and stamps
// last_seen. Returns the row ID and whether a new row was created.
func (s *Store) Checkin(ctx context.Context, p CheckinParams) (id string, created bool, err error) {
	now := time.Now().UTC()

	existing, err := s.GetByDeviceID(ctx, p.DeviceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", false, err
	}

	if existing != nil {
		name := existing.Name
		if p.Name != "" {
			name = p.Name
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE fleet_devices SET
				name = ?, status = ?, ip_address = ?,
				wifi_connected = ?, ethernet_connected = ?,
				current_url = ?, volume = ?,
				cpu_usage = ?, memory_usage = ?, disk_usage = ?,
				uptime_sec = ?, firmware_version = ?, last_seen = ?
			WHERE id = ?`,
			name, p.Status, p.IPAddress,
			p.WifiConnected, p.EthernetConnected,
			p.StreamURL, p.Volume,
			p.CPUUsage, p.MemoryUsage, p.DiskUsage,
			p.UptimeSec, p.FirmwareVersion, now,
			existing.ID,
		)
		if err != nil {
			return "", false, fmt.Errorf("update checkin: %w", err)
		}
		return existing.ID, false, nil
	}

	id = uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fleet_devices (
			id, device_id, name, status, ip_address,
			wifi_connected, ethernet_connected, current_url, volume,
			cpu_usage, memory_usage, disk_usage, uptime_sec,
			firmware_version, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.DeviceID, p.Name, p.Status, p.IPAddress,
		p.WifiConnected, p.EthernetConnected, p.StreamURL, p.Volume,
		p.CPUUsage, p.MemoryUsage, p.DiskUsage, p.UptimeSec,
		p.FirmwareVersion, now,
	)
	if err != nil {
		return "", false, fmt.Errorf("insert checkin: %w", err)
	}
	return id, true, nil
}

// FindStale returns rows last seen before the threshold whose status is not
// already offline. Rows with no last_seen are never considered stale; the
// agent has not reported yet and there is nothing to time out.
func (s *Store) FindStale(ctx context.Context, threshold time.Time) ([]DeviceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+deviceColumns+` FROM fleet_devices
		 WHERE last_seen IS NOT NULL AND last_seen < ? AND status != ?`,
		threshold.UTC(), string(models.DeviceStatusOffline))
	if err != nil {
		return nil, fmt.Errorf("find stale devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRow
	for rows.Next() {
		r, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// MarkOffline sets a device's status to offline without touching last_seen.
func (s *Store) MarkOffline(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE fleet_devices SET status = ? WHERE id = ?",
		string(models.DeviceStatusOffline), id)
	if err != nil {
		return fmt.Errorf("mark device offline: %w", err)
	}
	return nil
}

// Count returns the number of stored device rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fleet_devices").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}

// CountByGroup returns the number of devices assigned to the given group,
// counting legacy assignments as well.
func (s *Store) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fleet_devices
		WHERE COALESCE(NULLIF(group_id, ''), legacy_group) = ?`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count devices in group: %w", err)
	}
	return n, nil
}

// ClearGroupAssignments detaches every device pointing at the given
// group, legacy assignments included. Used when a group is deleted.
func (s *Store) ClearGroupAssignments(ctx context.Context, groupID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fleet_devices SET group_id = NULL, legacy_group = NULL
		WHERE COALESCE(NULLIF(group_id, ''), legacy_group) = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("clear group assignments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanRow(row *sql.Row) (*DeviceRow, error) {
	var d DeviceRow
	err := row.Scan(
		&d.ID, &d.DeviceID, &d.Name, &d.Status, &d.IPAddress,
		&d.WifiConnected, &d.EthernetConnected, &d.GroupID, &d.LegacyGroup,
		&d.StreamURL, &d.CurrentURL, &d.Volume, &d.CPUUsage, &d.MemoryUsage,
		&d.DiskUsage, &d.UptimeSec, &d.FirmwareVersion, &d.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}
	return &d, nil
}

func scanRows(rows *sql.Rows) (*DeviceRow, error) {
	var d DeviceRow
	err := rows.Scan(
		&d.ID, &d.DeviceID, &d.Name, &d.Status, &d.IPAddress,
		&d.WifiConnected, &d.EthernetConnected, &d.GroupID, &d.LegacyGroup,
		&d.StreamURL, &d.CurrentURL, &d.Volume, &d.CPUUsage, &d.MemoryUsage,
		&d.DiskUsage, &d.UptimeSec, &d.FirmwareVersion, &d.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}
	return &d, nil
}
