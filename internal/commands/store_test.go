package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radiorevive/console/internal/store"
	"github.com/radiorevive/console/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "commands", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(s.DB())
}

func TestAppendOwnsTimestampAndProcessed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Callers cannot smuggle in a processed entry or their own clock.
	c := &models.Command{
		DeviceID:  "radio-1",
		Action:    models.ActionPlay,
		StreamURL: "http://stream.example/a",
		Processed: true,
		CreatedAt: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.Append(ctx, c); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Processed {
		t.Error("appended command is marked processed")
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("created_at = %v, want server clock", got.CreatedAt)
	}
}

func TestPendingForDeviceArrivalOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &models.Command{DeviceID: "radio-1", Action: models.ActionStop}
	second := &models.Command{DeviceID: "radio-1", Action: models.ActionPlay, StreamURL: "http://s"}
	other := &models.Command{DeviceID: "radio-2", Action: models.ActionPause}
	for _, c := range []*models.Command{first, second, other} {
		if err := s.Append(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MarkProcessed(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingForDevice(ctx, "radio-1")
	if err != nil {
		t.Fatalf("PendingForDevice() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending = %+v, want just the unprocessed play command", pending)
	}
}

func TestMarkProcessedUnknownID(t *testing.T) {
	s := testStore(t)

	err := s.MarkProcessed(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkProcessed() error = %v, want ErrNotFound", err)
	}
}

func TestListFiltersProcessed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c1 := &models.Command{DeviceID: "radio-1", Action: models.ActionVolume}
	v := 40
	c1.Volume = &v
	c2 := &models.Command{DeviceID: "radio-1", Action: models.ActionSystemUpdate}
	for _, c := range []*models.Command{c1, c2} {
		if err := s.Append(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MarkProcessed(ctx, c1.ID); err != nil {
		t.Fatal(err)
	}

	unprocessed, err := s.List(ctx, ListOptions{DeviceID: "radio-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(unprocessed) != 1 {
		t.Errorf("unprocessed = %d entries, want 1", len(unprocessed))
	}

	all, err := s.List(ctx, ListOptions{DeviceID: "radio-1", IncludeProcessed: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d entries, want 2", len(all))
	}

	// Volume survives the round trip as a pointer, absent elsewhere.
	for _, c := range all {
		if c.Action == models.ActionVolume {
			if c.Volume == nil || *c.Volume != 40 {
				t.Errorf("volume = %v, want 40", c.Volume)
			}
		} else if c.Volume != nil {
			t.Errorf("%s command has volume %d", c.Action, *c.Volume)
		}
	}
}
