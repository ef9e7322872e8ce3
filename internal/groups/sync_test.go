package groups

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

// fakeCounter serves fixed per-group device counts.
type fakeCounter map[string]int

func (f fakeCounter) CountByGroup(_ context.Context, groupID string) (int, error) {
	return f[groupID], nil
}

func TestSyncCountsCorrectsDrift(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	drifted := mustCreate(t, s, CreateParams{Name: "Drifted"})
	correct := mustCreate(t, s, CreateParams{Name: "Correct"})
	if err := s.SetDeviceCount(ctx, correct, 3); err != nil {
		t.Fatal(err)
	}

	counts := fakeCounter{drifted: 5, correct: 3}

	report, err := s.SyncCounts(ctx, counts, zap.NewNop())
	if err != nil {
		t.Fatalf("SyncCounts() error = %v", err)
	}
	if report.Groups != 2 {
		t.Errorf("groups = %d, want 2", report.Groups)
	}
	if report.Updated != 1 {
		t.Errorf("updated = %d, want 1 (only the drifted group)", report.Updated)
	}

	g, _ := s.Get(ctx, drifted)
	if g.DeviceCount != 5 {
		t.Errorf("device count = %d, want 5", g.DeviceCount)
	}
}

func TestSyncCountsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, CreateParams{Name: "A"})
	b := mustCreate(t, s, CreateParams{Name: "B"})
	counts := fakeCounter{a: 2, b: 0}

	if _, err := s.SyncCounts(ctx, counts, zap.NewNop()); err != nil {
		t.Fatalf("first SyncCounts() error = %v", err)
	}

	second, err := s.SyncCounts(ctx, counts, zap.NewNop())
	if err != nil {
		t.Fatalf("second SyncCounts() error = %v", err)
	}
	if second.Updated != 0 {
		t.Errorf("second pass updated %d groups, want 0", second.Updated)
	}
}
