package groups

import (
	"context"
	"testing"
	"time"

	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/internal/testutil"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// fakeDevices is an in-memory DeviceStore recording updates.
type fakeDevices struct {
	rows    map[string]*fleet.DeviceRow
	updates map[string]fleet.UpdateParams
}

func newFakeDevices(rows ...*fleet.DeviceRow) *fakeDevices {
	f := &fakeDevices{
		rows:    make(map[string]*fleet.DeviceRow),
		updates: make(map[string]fleet.UpdateParams),
	}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeDevices) Get(_ context.Context, id string) (*fleet.DeviceRow, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, fleet.ErrNotFound
	}
	return r, nil
}

func (f *fakeDevices) Update(_ context.Context, id string, p fleet.UpdateParams) error {
	if _, ok := f.rows[id]; !ok {
		return fleet.ErrNotFound
	}
	f.updates[id] = p
	return nil
}

// fakeDispatcher records the command sequence as "action:deviceID".
type fakeDispatcher struct {
	calls []string
	urls  map[string]string
}

func (f *fakeDispatcher) SendStop(_ context.Context, deviceID string) (*models.Command, error) {
	f.calls = append(f.calls, "stop:"+deviceID)
	return &models.Command{DeviceID: deviceID, Action: models.ActionStop}, nil
}

func (f *fakeDispatcher) SendPlay(_ context.Context, deviceID, streamURL string) (*models.Command, error) {
	f.calls = append(f.calls, "play:"+deviceID)
	if f.urls == nil {
		f.urls = make(map[string]string)
	}
	f.urls[deviceID] = streamURL
	return &models.Command{DeviceID: deviceID, Action: models.ActionPlay, StreamURL: streamURL}, nil
}

func testAssigner(devices DeviceStore, dispatcher PlaybackDispatcher, sleeps *int) *assigner {
	return &assigner{
		devices:     devices,
		dispatcher:  dispatcher,
		settleDelay: time.Second,
		sleep:       func(time.Duration) { *sleeps++ },
		logger:      zap.NewNop(),
	}
}

func TestAssignRestartsOnlyPlayingDevices(t *testing.T) {
	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "playing"},
		&fleet.DeviceRow{ID: "row-2", DeviceID: "radio-2", Status: "online"},
	)
	dispatcher := &fakeDispatcher{}
	sleeps := 0
	a := testAssigner(devices, dispatcher, &sleeps)

	g := testutil.NewGroup(testutil.WithGroupStream("http://stream.example/g1"))
	g.ID = "g1"
	report, err := a.Assign(context.Background(), &g, []string{"row-1", "row-2"})
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if report.Assigned != 2 || report.Restarted != 1 {
		t.Errorf("report = %+v", report)
	}

	// Only the playing member sees a stop then a play; the online one
	// gets neither.
	want := []string{"stop:radio-1", "play:radio-1"}
	if len(dispatcher.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", dispatcher.calls, want)
	}
	for i := range want {
		if dispatcher.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, dispatcher.calls[i], want[i])
		}
	}
	if dispatcher.urls["radio-1"] != "http://stream.example/g1" {
		t.Errorf("play URL = %q, want the group stream", dispatcher.urls["radio-1"])
	}
}

func TestAssignWritesGroupAndStreamURL(t *testing.T) {
	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "online"},
	)
	sleeps := 0
	a := testAssigner(devices, &fakeDispatcher{}, &sleeps)

	group := &models.Group{ID: "g1", StreamURL: "http://stream.example/g1"}
	if _, err := a.Assign(context.Background(), group, []string{"row-1"}); err != nil {
		t.Fatal(err)
	}

	p := devices.updates["row-1"]
	if v, ok := p.GroupID.Value(); !ok || v != "g1" {
		t.Errorf("group update = %v, %v, want Set(g1)", v, ok)
	}
	if v, ok := p.StreamURL.Value(); !ok || v != "http://stream.example/g1" {
		t.Errorf("stream URL update = %v, %v, want the group stream", v, ok)
	}
}

func TestAssignSettlesOncePerCall(t *testing.T) {
	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "playing"},
		&fleet.DeviceRow{ID: "row-2", DeviceID: "radio-2", Status: "playing"},
		&fleet.DeviceRow{ID: "row-3", DeviceID: "radio-3", Status: "playing"},
	)
	sleeps := 0
	a := testAssigner(devices, &fakeDispatcher{}, &sleeps)

	group := &models.Group{ID: "g1", StreamURL: "http://s"}
	if _, err := a.Assign(context.Background(), group, []string{"row-1", "row-2", "row-3"}); err != nil {
		t.Fatal(err)
	}

	if sleeps != 1 {
		t.Errorf("settle delay paid %d times, want once", sleeps)
	}
}

func TestAssignNoPlayingMembersSkipsSettle(t *testing.T) {
	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "offline"},
	)
	sleeps := 0
	a := testAssigner(devices, &fakeDispatcher{}, &sleeps)

	group := &models.Group{ID: "g1"}
	if _, err := a.Assign(context.Background(), group, []string{"row-1"}); err != nil {
		t.Fatal(err)
	}
	if sleeps != 0 {
		t.Errorf("settle delay paid %d times with no playing members, want 0", sleeps)
	}
}

func TestAssignNotifiesDeviceSubscribers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	bus := event.NewBus(zap.NewNop())

	id := mustCreate(t, s, CreateParams{Name: "Lobby", StreamURL: "http://stream.example/lobby"})

	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "playing"},
	)
	sleeps := 0
	m := &Module{
		logger:   zap.NewNop(),
		store:    s,
		bus:      bus,
		counter:  fakeCounter{id: 1},
		assigner: testAssigner(devices, &fakeDispatcher{}, &sleeps),
	}

	var deviceEvents, groupEvents int
	bus.Subscribe(fleet.TopicChanged, func(context.Context, plugin.Event) { deviceEvents++ })
	bus.Subscribe(TopicChanged, func(context.Context, plugin.Event) { groupEvents++ })

	if _, err := m.Assign(ctx, id, []string{"row-1"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	// The assignment wrote a device row, so device-collection watchers
	// must be told to re-read, not only group watchers.
	if deviceEvents != 1 {
		t.Errorf("device change events = %d, want 1", deviceEvents)
	}
	if groupEvents != 1 {
		t.Errorf("group change events = %d, want 1", groupEvents)
	}

	// Nothing assigned means no device row changed and no device event.
	if _, err := m.Assign(ctx, id, []string{"ghost"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if deviceEvents != 1 {
		t.Errorf("device change events after no-op assign = %d, want 1", deviceEvents)
	}
}

func TestAssignReportsMissingDevices(t *testing.T) {
	devices := newFakeDevices(
		&fleet.DeviceRow{ID: "row-1", DeviceID: "radio-1", Status: "online"},
	)
	sleeps := 0
	a := testAssigner(devices, &fakeDispatcher{}, &sleeps)

	group := &models.Group{ID: "g1"}
	report, err := a.Assign(context.Background(), group, []string{"row-1", "ghost"})
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if report.Assigned != 1 {
		t.Errorf("assigned = %d, want 1", report.Assigned)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "ghost" {
		t.Errorf("missing = %v, want [ghost]", report.Missing)
	}
}
