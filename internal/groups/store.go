package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
)

// ErrNotFound is returned when a group lookup finds no row.
var ErrNotFound = errors.New("group not found")

// Store provides database operations for streaming groups.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateParams holds the fields for a new group.
type CreateParams struct {
	Name       string
	StreamURL  string
	MusicFiles []string
}

// Create inserts a new group and returns its ID.
func (s *Store) Create(ctx context.Context, p CreateParams) (string, error) {
	id := uuid.New().String()

	files, err := marshalFiles(p.MusicFiles)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stream_groups (id, name, stream_url, music_files, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, p.Name, p.StreamURL, files, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return id, nil
}

// Get returns one group.
func (s *Store) Get(ctx context.Context, id string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, stream_url, music_files, device_count, created_at
		FROM stream_groups WHERE id = ?`, id)
	return scanGroup(row.Scan)
}

// List returns all groups ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, stream_url, music_files, device_count, created_at
		FROM stream_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// UpdateParams holds partial group updates. Zero-valued fields are
// untouched; Clear erases.
type UpdateParams struct {
	Name       patch.Field[string]
	StreamURL  patch.Field[string]
	MusicFiles patch.Field[[]string]
}

// Update applies a partial update to a group.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) error {
	var sets []string
	var args []any

	appendString := func(col string, f patch.Field[string]) {
		if f.IsKeep() {
			return
		}
		sets = append(sets, col+" = ?")
		if f.IsClear() {
			args = append(args, "")
			return
		}
		v, _ := f.Value()
		args = append(args, v)
	}

	appendString("name", p.Name)
	appendString("stream_url", p.StreamURL)

	if !p.MusicFiles.IsKeep() {
		files := []string{}
		if v, ok := p.MusicFiles.Value(); ok {
			files = v
		}
		encoded, err := marshalFiles(files)
		if err != nil {
			return err
		}
		sets = append(sets, "music_files = ?")
		args = append(args, encoded)
	}

	if len(sets) == 0 {
		// Verify existence so a no-op PATCH still 404s on unknown IDs.
		_, err := s.Get(ctx, id)
		return err
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE stream_groups SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
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

// SetDeviceCount writes the derived member count.
func (s *Store) SetDeviceCount(ctx context.Context, id string, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stream_groups SET device_count = ? WHERE id = ?", count, id)
	if err != nil {
		return fmt.Errorf("set device count: %w", err)
	}
	return nil
}

// Delete removes a group. Reports whether a row was actually removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM stream_groups WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of groups.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stream_groups").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

func marshalFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("encode music files: %w", err)
	}
	return string(b), nil
}

func scanGroup(scan func(...any) error) (*models.Group, error) {
	var g models.Group
	var files string
	err := scan(&g.ID, &g.Name, &g.StreamURL, &files, &g.DeviceCount, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	if files != "" {
		if err := json.Unmarshal([]byte(files), &g.MusicFiles); err != nil {
			return nil, fmt.Errorf("decode music files: %w", err)
		}
	}
	return &g, nil
}
