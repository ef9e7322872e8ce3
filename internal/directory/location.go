package directory

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

// ErrNotFound is returned when a user lookup finds no record.
var ErrNotFound = errors.New("user not found")

// UpdateParams holds partial user updates.
type UpdateParams struct {
	Name     patch.Field[string]
	Email    patch.Field[string]
	Role     patch.Field[string]
	DeviceID patch.Field[string]
}

// Location is one of the two user storage locations. Both locations
// speak the same operations; the federation layer decides which one to
// ask.
type Location interface {
	Name() models.UserLocation
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, normalizedEmail string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id string, p UpdateParams) error
	Delete(ctx context.Context, id string) (bool, error)
}

// sqlLocation implements Location over one table.
type sqlLocation struct {
	db    *sql.DB
	table string
	loc   models.UserLocation
}

// NewCurrentLocation returns the location new records are written to.
func NewCurrentLocation(db *sql.DB) Location {
	return &sqlLocation{db: db, table: "directory_users", loc: models.LocationCurrent}
}

// NewLegacyLocation returns the read-mostly pre-migration location.
func NewLegacyLocation(db *sql.DB) Location {
	return &sqlLocation{db: db, table: "directory_users_legacy", loc: models.LocationLegacy}
}

func (l *sqlLocation) Name() models.UserLocation { return l.loc }

const userColumns = "id, name, email, role, device_id, created_at"

func (l *sqlLocation) Get(ctx context.Context, id string) (*models.User, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM "+l.table+" WHERE id = ?", id)
	return l.scan(row.Scan)
}

// GetByEmail matches on the normalized address so stored records with
// stray whitespace or mixed case are still found. Callers normalize the
// argument with NormalizeEmail.
func (l *sqlLocation) GetByEmail(ctx context.Context, normalizedEmail string) (*models.User, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM "+l.table+
			" WHERE LOWER(TRIM(email)) = ? LIMIT 1", normalizedEmail)
	return l.scan(row.Scan)
}

func (l *sqlLocation) List(ctx context.Context) ([]models.User, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM "+l.table+" ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list users in %s: %w", l.loc, err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := l.scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (l *sqlLocation) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = time.Now().UTC()
	u.Location = l.loc

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO "+l.table+" (id, name, email, role, device_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, string(u.Role), u.DeviceID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user in %s: %w", l.loc, err)
	}
	return nil
}

func (l *sqlLocation) Update(ctx context.Context, id string, p UpdateParams) error {
	var sets []string
	var args []any

	appendField := func(col string, f patch.Field[string]) {
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

	appendField("name", p.Name)
	appendField("email", p.Email)
	appendField("role", p.Role)
	appendField("device_id", p.DeviceID)

	if len(sets) == 0 {
		_, err := l.Get(ctx, id)
		return err
	}

	args = append(args, id)
	res, err := l.db.ExecContext(ctx,
		"UPDATE "+l.table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update user in %s: %w", l.loc, err)
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

func (l *sqlLocation) Delete(ctx context.Context, id string) (bool, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM "+l.table+" WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete user in %s: %w", l.loc, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *sqlLocation) scan(scan func(...any) error) (*models.User, error) {
	var u models.User
	var role string
	err := scan(&u.ID, &u.Name, &u.Email, &role, &u.DeviceID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.UserRole(role)
	u.Location = l.loc
	return &u, nil
}

// NormalizeEmail folds an address for comparison: surrounding whitespace
// is trimmed and case is ignored. The stored value keeps its original
// form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
