package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radiorevive/console/internal/store"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "fleet", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(s.DB())
}

func mustCreate(t *testing.T, s *Store, p CreateParams) string {
	t.Helper()
	id, err := s.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return id
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, CreateParams{
		DeviceID:  "radio-001",
		Name:      "Front Counter",
		Status:    "online",
		IPAddress: "192.168.1.10",
		GroupID:   "g1",
		Volume:    30,
	})

	row, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if row.Name != "Front Counter" || row.DeviceID != "radio-001" {
		t.Errorf("row = %+v", row)
	}
	if row.EffectiveGroup() != "g1" {
		t.Errorf("EffectiveGroup() = %q, want g1", row.EffectiveGroup())
	}
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateClearGroupErasesBothFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, CreateParams{Name: "A", GroupID: "g1"})

	// Legacy writers also mirrored the assignment; simulate that.
	if err := s.Update(ctx, id, UpdateParams{GroupID: patch.Set("g2")}); err != nil {
		t.Fatalf("set group: %v", err)
	}

	row, _ := s.Get(ctx, id)
	if !row.GroupID.Valid || row.GroupID.String != "g2" {
		t.Fatalf("group_id = %+v, want g2", row.GroupID)
	}
	if !row.LegacyGroup.Valid || row.LegacyGroup.String != "g2" {
		t.Fatalf("legacy_group = %+v, want mirrored g2", row.LegacyGroup)
	}

	if err := s.Update(ctx, id, UpdateParams{GroupID: patch.Clear[string]()}); err != nil {
		t.Fatalf("clear group: %v", err)
	}

	row, _ = s.Get(ctx, id)
	if row.GroupID.Valid {
		t.Errorf("group_id still present after clear: %+v", row.GroupID)
	}
	if row.LegacyGroup.Valid {
		t.Errorf("legacy_group still present after clear: %+v", row.LegacyGroup)
	}
	if row.EffectiveGroup() != "" {
		t.Errorf("EffectiveGroup() = %q, want empty", row.EffectiveGroup())
	}
}

func TestUpdateKeepLeavesFieldsUntouched(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, CreateParams{Name: "Original", GroupID: "g1", Volume: 40})

	if err := s.Update(ctx, id, UpdateParams{Name: patch.Set("Renamed")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	row, _ := s.Get(ctx, id)
	if row.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", row.Name)
	}
	if row.EffectiveGroup() != "g1" {
		t.Errorf("group = %q, want g1 (Keep must not touch it)", row.EffectiveGroup())
	}
	if row.Volume != 40 {
		t.Errorf("volume = %d, want 40", row.Volume)
	}
}

func TestUpdateMissingDevice(t *testing.T) {
	s := testStore(t)
	err := s.Update(context.Background(), "missing", UpdateParams{Name: patch.Set("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTolerant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, CreateParams{Name: "A"})

	removed, err := s.Delete(ctx, id)
	if err != nil || !removed {
		t.Fatalf("Delete() = %v, %v; want true, nil", removed, err)
	}

	// Deleting again is a no-op, not an error.
	removed, err = s.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if removed {
		t.Error("second Delete() reported a removal")
	}
}

func TestCheckinUpsertsByHardwareID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1, created, err := s.Checkin(ctx, CheckinParams{
		DeviceID: "radio-007", Name: "Kitchen", Status: "playing", IPAddress: "10.0.0.7",
	})
	if err != nil {
		t.Fatalf("first Checkin() error = %v", err)
	}
	if !created {
		t.Error("first Checkin() should create a row")
	}

	id2, created, err := s.Checkin(ctx, CheckinParams{
		DeviceID: "radio-007", Status: "paused", IPAddress: "10.0.0.8", Volume: 65,
	})
	if err != nil {
		t.Fatalf("second Checkin() error = %v", err)
	}
	if created {
		t.Error("second Checkin() should update, not create")
	}
	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}

	row, _ := s.Get(ctx, id1)
	if row.Status != "paused" || row.IPAddress != "10.0.0.8" || row.Volume != 65 {
		t.Errorf("row after second checkin = %+v", row)
	}
	// Empty name in the report must not erase the stored name.
	if row.Name != "Kitchen" {
		t.Errorf("name = %q, want Kitchen preserved", row.Name)
	}
	if !row.LastSeen.Valid {
		t.Error("last_seen not stamped by checkin")
	}
}

func TestFindStaleSkipsNeverSeenAndOffline(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Never checked in: last_seen is NULL.
	mustCreate(t, s, CreateParams{DeviceID: "fresh-create", Status: "online"})

	// Stale and online.
	staleID, _, err := s.Checkin(ctx, CheckinParams{DeviceID: "stale", Status: "online"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE fleet_devices SET last_seen = ? WHERE id = ?",
		time.Now().Add(-time.Hour).UTC(), staleID); err != nil {
		t.Fatal(err)
	}

	// Stale but already offline.
	offID, _, err := s.Checkin(ctx, CheckinParams{DeviceID: "gone", Status: "online"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE fleet_devices SET last_seen = ?, status = 'offline' WHERE id = ?",
		time.Now().Add(-time.Hour).UTC(), offID); err != nil {
		t.Fatal(err)
	}

	stale, err := s.FindStale(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != staleID {
		t.Errorf("FindStale() = %v rows, want exactly the stale online device", len(stale))
	}
}

func TestCountByGroupIncludesLegacyAssignments(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustCreate(t, s, CreateParams{Name: "current", GroupID: "g1"})

	// A legacy row: only legacy_group carries the assignment.
	legacyID := mustCreate(t, s, CreateParams{Name: "legacy"})
	if _, err := s.db.ExecContext(ctx,
		"UPDATE fleet_devices SET legacy_group = 'g1' WHERE id = ?", legacyID); err != nil {
		t.Fatal(err)
	}

	mustCreate(t, s, CreateParams{Name: "other", GroupID: "g2"})

	n, err := s.CountByGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("CountByGroup() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountByGroup(g1) = %d, want 2", n)
	}
}

func TestProjectDefaults(t *testing.T) {
	row := &DeviceRow{
		ID:         "x",
		Status:     "rebooting", // not a recognized status
		CurrentURL: "http://legacy.example.com/stream",
	}
	d := Project(row)

	if d.Status != models.DeviceStatusOffline {
		t.Errorf("status = %q, want offline for unknown stored status", d.Status)
	}
	if d.Name != models.DefaultDeviceName {
		t.Errorf("name = %q, want placeholder", d.Name)
	}
	if d.StreamURL != "http://legacy.example.com/stream" {
		t.Errorf("stream_url = %q, want legacy current_url fallback", d.StreamURL)
	}
	if !d.LastSeenEstimated {
		t.Error("LastSeenEstimated not set for row without last_seen")
	}
	if d.LastSeen.IsZero() {
		t.Error("LastSeen zero; display fallback missing")
	}
}

func TestProjectPrefersCurrentFields(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &DeviceRow{
		ID:        "x",
		Name:      "Named",
		Status:    "playing",
		StreamURL: "http://current.example.com",
		CurrentURL: "http://legacy.example.com",
	}
	row.GroupID.Valid, row.GroupID.String = true, "g-new"
	row.LegacyGroup.Valid, row.LegacyGroup.String = true, "g-old"
	row.LastSeen.Valid, row.LastSeen.Time = true, seen

	d := Project(row)
	if d.StreamURL != "http://current.example.com" {
		t.Errorf("stream_url = %q", d.StreamURL)
	}
	if d.GroupID != "g-new" {
		t.Errorf("group_id = %q, want current field preferred", d.GroupID)
	}
	if !d.LastSeen.Equal(seen) || d.LastSeenEstimated {
		t.Errorf("last_seen = %v estimated=%v", d.LastSeen, d.LastSeenEstimated)
	}
}
