package groups

import (
	"context"
	"testing"

	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/pkg/models"
	"go.uber.org/zap"
)

func TestWatchEmitsInitialSnapshotAndOnChange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	bus := event.NewBus(zap.NewNop())

	mustCreate(t, s, CreateParams{Name: "Lobby"})

	m := &Module{logger: zap.NewNop(), store: s, bus: bus}

	var snapshots [][]models.Group
	unsubscribe := m.Watch(ctx, func(gs []models.Group) {
		snapshots = append(snapshots, gs)
	})

	// The initial listing arrives without any event.
	if len(snapshots) != 1 || len(snapshots[0]) != 1 {
		t.Fatalf("snapshots after Watch = %v, want one listing with one group", snapshots)
	}

	mustCreate(t, s, CreateParams{Name: "Patio"})
	m.publishChanged(ctx)

	if len(snapshots) != 2 || len(snapshots[1]) != 2 {
		t.Fatalf("snapshots after change = %d listings, want a second one with both groups", len(snapshots))
	}

	unsubscribe()
	m.publishChanged(ctx)
	if len(snapshots) != 2 {
		t.Errorf("snapshot emitted after unsubscribe")
	}

	// Unsubscribing twice must be harmless.
	unsubscribe()
}
