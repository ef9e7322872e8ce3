package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/radiorevive/console/pkg/models"
)

// ErrAdminUndeletable is returned when a delete targets an admin
// account. Admins are removed by demoting them first; a console with no
// admin left is unrecoverable.
var ErrAdminUndeletable = errors.New("admin accounts cannot be deleted")

// Federation reads across both user storage locations and routes writes
// to whichever location holds the record. New records always land in
// the current location.
type Federation struct {
	current Location
	legacy  Location
}

// NewFederation creates a Federation over the two locations.
func NewFederation(current, legacy Location) *Federation {
	return &Federation{current: current, legacy: legacy}
}

// LookupByEmail finds a user by address, current location first. The
// address is compared case-insensitively with surrounding whitespace
// ignored on both sides.
func (f *Federation) LookupByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrNotFound
	}

	u, err := f.current.GetByEmail(ctx, normalized)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return f.legacy.GetByEmail(ctx, normalized)
}

// Get finds a user by ID, current location first.
func (f *Federation) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := f.current.Get(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return f.legacy.Get(ctx, id)
}

// List returns the union of both locations. Records are NOT deduplicated
// across locations; an account that exists in both shows up twice, each
// stamped with its Location, so operators can see the duplication and
// finish the migration.
func (f *Federation) List(ctx context.Context) ([]models.User, error) {
	current, err := f.current.List(ctx)
	if err != nil {
		return nil, err
	}
	legacy, err := f.legacy.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(current, legacy...), nil
}

// Create writes a new user to the current location.
func (f *Federation) Create(ctx context.Context, u *models.User) error {
	return f.current.Create(ctx, u)
}

// Update applies a partial update wherever the record lives: current
// location first, legacy as fallback.
func (f *Federation) Update(ctx context.Context, id string, p UpdateParams) error {
	err := f.current.Update(ctx, id, p)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return err
	}
	return f.legacy.Update(ctx, id, p)
}

// Delete removes a user from whichever location holds the record.
// Admin accounts are refused regardless of location.
func (f *Federation) Delete(ctx context.Context, id string) error {
	u, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == models.RoleAdmin {
		return ErrAdminUndeletable
	}

	loc := f.current
	if u.Location == models.LocationLegacy {
		loc = f.legacy
	}
	removed, err := loc.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of records across both locations.
func (f *Federation) Count(ctx context.Context) (int, error) {
	users, err := f.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return len(users), nil
}
