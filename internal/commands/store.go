package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/radiorevive/console/pkg/models"
)

// ErrNotFound is returned when a command lookup finds no row.
var ErrNotFound = errors.New("command not found")

// Store provides database operations for the command queue.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const commandColumns = `id, device_id, action, stream_url, volume,
	ssid, password, ip_address, gateway, dns1, dns2, iface,
	processed, created_at`

// Append inserts a new queue entry. The entry always starts unprocessed
// and is stamped with the server clock; callers cannot override either.
func (s *Store) Append(ctx context.Context, c *models.Command) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.Processed = false
	c.CreatedAt = time.Now().UTC()

	var volume any
	if c.Volume != nil {
		volume = *c.Volume
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_queue (
			id, device_id, action, stream_url, volume,
			ssid, password, ip_address, gateway, dns1, dns2, iface,
			processed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.DeviceID, string(c.Action), c.StreamURL, volume,
		c.SSID, c.Password, c.IPAddress, c.Gateway, c.DNS1, c.DNS2, c.Interface,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// Get returns a single queue entry.
func (s *Store) Get(ctx context.Context, id string) (*models.Command, error) {
	return scanCommand(s.db.QueryRowContext(ctx,
		"SELECT "+commandColumns+" FROM command_queue WHERE id = ?", id))
}

// ListOptions filters queue listings.
type ListOptions struct {
	DeviceID         string
	IncludeProcessed bool
	Limit            int
}

// List returns queue entries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Command, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	where := "1=1"
	args := []any{}
	if opts.DeviceID != "" {
		where += " AND device_id = ?"
		args = append(args, opts.DeviceID)
	}
	if !opts.IncludeProcessed {
		where += " AND processed = 0"
	}
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+commandColumns+" FROM command_queue WHERE "+where+
			" ORDER BY created_at DESC LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	var out []models.Command
	for rows.Next() {
		c, err := scanCommandRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// PendingForDevice returns a device's unprocessed commands in arrival order.
func (s *Store) PendingForDevice(ctx context.Context, deviceID string) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+commandColumns+` FROM command_queue
		 WHERE device_id = ? AND processed = 0 ORDER BY created_at`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("pending commands: %w", err)
	}
	defer rows.Close()

	var out []models.Command
	for rows.Next() {
		c, err := scanCommandRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkProcessed records that the agent consumed a command.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE command_queue SET processed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
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

// Count returns the number of queue entries, processed ones included.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_queue").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count commands: %w", err)
	}
	return n, nil
}

func scanCommand(row *sql.Row) (*models.Command, error) {
	var c models.Command
	var action string
	var volume sql.NullInt64
	err := row.Scan(
		&c.ID, &c.DeviceID, &action, &c.StreamURL, &volume,
		&c.SSID, &c.Password, &c.IPAddress, &c.Gateway, &c.DNS1, &c.DNS2, &c.Interface,
		&c.Processed, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan command: %w", err)
	}
	c.Action = models.CommandAction(action)
	if volume.Valid {
		v := int(volume.Int64)
		c.Volume = &v
	}
	return &c, nil
}

func scanCommandRows(rows *sql.Rows) (*models.Command, error) {
	var c models.Command
	var action string
	var volume sql.NullInt64
	err := rows.Scan(
		&c.ID, &c.DeviceID, &action, &c.StreamURL, &volume,
		&c.SSID, &c.Password, &c.IPAddress, &c.Gateway, &c.DNS1, &c.DNS2, &c.Interface,
		&c.Processed, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan command: %w", err)
	}
	c.Action = models.CommandAction(action)
	if volume.Valid {
		v := int(volume.Int64)
		c.Volume = &v
	}
	return &c, nil
}
