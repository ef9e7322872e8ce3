package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// testPlugin is a minimal module for testing.
type testPlugin struct {
	info    plugin.PluginInfo
	initErr error
}

func newTestPlugin(name string, deps ...string) *testPlugin {
	return &testPlugin{
		info: plugin.PluginInfo{
			Name:         name,
			Version:      "1.0.0",
			Description:  "test module " + name,
			Dependencies: deps,
			APIVersion:   plugin.APIVersionCurrent,
		},
	}
}

func (p *testPlugin) Info() plugin.PluginInfo                             { return p.info }
func (p *testPlugin) Init(_ context.Context, _ plugin.Dependencies) error { return p.initErr }
func (p *testPlugin) Start(_ context.Context) error                       { return nil }
func (p *testPlugin) Stop(_ context.Context) error                        { return nil }

// shutdownPlugin records stop order via a shared slice.
type shutdownPlugin struct {
	testPlugin
	stopOrder *[]string
}

func newShutdownPlugin(name string, stopOrder *[]string, deps ...string) *shutdownPlugin {
	return &shutdownPlugin{
		testPlugin: *newTestPlugin(name, deps...),
		stopOrder:  stopOrder,
	}
}

func (p *shutdownPlugin) Stop(_ context.Context) error {
	if p.stopOrder != nil {
		*p.stopOrder = append(*p.stopOrder, p.info.Name)
	}
	return nil
}

// testHTTPPlugin implements both Plugin and HTTPProvider.
type testHTTPPlugin struct {
	testPlugin
	routes []plugin.Route
}

func (p *testHTTPPlugin) Routes() []plugin.Route { return p.routes }

// testEventSubPlugin implements both Plugin and EventSubscriber.
type testEventSubPlugin struct {
	testPlugin
	subscriptions []plugin.Subscription
}

func (p *testEventSubPlugin) Subscriptions() []plugin.Subscription { return p.subscriptions }

// testBus records Subscribe calls for verification.
type testBus struct {
	topics []string
}

func (b *testBus) Publish(_ context.Context, _ plugin.Event) error { return nil }
func (b *testBus) Subscribe(topic string, _ plugin.EventHandler) (unsubscribe func()) {
	b.topics = append(b.topics, topic)
	return func() {}
}
func (b *testBus) PublishAsync(_ context.Context, _ plugin.Event) {}
func (b *testBus) SubscribeAll(_ plugin.EventHandler) (unsubscribe func()) {
	return func() {}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testDeps() func(string) plugin.Dependencies {
	return func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Logger: testLogger().Named(name),
		}
	}
}

func TestRegister(t *testing.T) {
	reg := New(testLogger())

	p := newTestPlugin("fleet")
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Duplicate registration should fail.
	if err := reg.Register(p); err == nil {
		t.Fatal("Register() expected error for duplicate, got nil")
	}
}

func TestRegisterEmptyName(t *testing.T) {
	reg := New(testLogger())
	p := &testPlugin{info: plugin.PluginInfo{Name: ""}}
	if err := reg.Register(p); err == nil {
		t.Fatal("Register() expected error for empty name, got nil")
	}
}

func TestValidateWithDeps(t *testing.T) {
	reg := New(testLogger())
	reg.Register(newTestPlugin("groups", "fleet")) // groups depends on fleet
	reg.Register(newTestPlugin("fleet"))

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	all := reg.All()
	fleetIdx, groupsIdx := -1, -1
	for i, p := range all {
		switch p.Info().Name {
		case "fleet":
			fleetIdx = i
		case "groups":
			groupsIdx = i
		}
	}
	if fleetIdx >= groupsIdx {
		t.Errorf("expected fleet (idx %d) before groups (idx %d)", fleetIdx, groupsIdx)
	}
}

func TestValidateCycleDetection(t *testing.T) {
	reg := New(testLogger())
	reg.Register(newTestPlugin("a", "b"))
	reg.Register(newTestPlugin("b", "a"))

	if err := reg.Validate(); err == nil {
		t.Fatal("Validate() expected cycle error, got nil")
	}
}

func TestValidateMissingRequiredDep(t *testing.T) {
	reg := New(testLogger())
	p := newTestPlugin("a", "missing")
	p.info.Required = true
	reg.Register(p)

	if err := reg.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing required dep, got nil")
	}
}

func TestValidateDisablesOptionalWithMissingDep(t *testing.T) {
	reg := New(testLogger())
	reg.Register(newTestPlugin("a", "missing")) // optional, dep doesn't exist

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !reg.IsDisabled("a") {
		t.Error("expected module 'a' to be disabled")
	}
}

func TestCascadeDisable(t *testing.T) {
	reg := New(testLogger())

	a := newTestPlugin("a")
	a.info.APIVersion = 0 // below minimum, will be disabled

	b := newTestPlugin("b", "a")

	reg.Register(a)
	reg.Register(b)

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !reg.IsDisabled("a") {
		t.Error("expected 'a' to be disabled (bad API version)")
	}
	if !reg.IsDisabled("b") {
		t.Error("expected 'b' to be cascade disabled")
	}
}

func TestAPIVersionTooNew(t *testing.T) {
	reg := New(testLogger())
	p := newTestPlugin("future")
	p.info.APIVersion = 999
	p.info.Required = true
	reg.Register(p)

	if err := reg.Validate(); err == nil {
		t.Fatal("Validate() expected error for future API version, got nil")
	}
}

func TestInitAllRequiredFails(t *testing.T) {
	reg := New(testLogger())
	p := newTestPlugin("a")
	p.info.Required = true
	p.initErr = errors.New("init failed")
	reg.Register(p)
	reg.Validate()

	ctx := context.Background()
	if err := reg.InitAll(ctx, testDeps()); err == nil {
		t.Fatal("InitAll() expected error for required module failure, got nil")
	}
}

func TestInitAllOptionalDisabledOnFailure(t *testing.T) {
	reg := New(testLogger())
	p := newTestPlugin("a")
	p.initErr = errors.New("init failed")
	reg.Register(p)
	reg.Validate()

	ctx := context.Background()
	if err := reg.InitAll(ctx, testDeps()); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if !reg.IsDisabled("a") {
		t.Error("expected optional module 'a' to be disabled after init failure")
	}
}

func TestAllRoutesHTTPProvider(t *testing.T) {
	reg := New(testLogger())

	hp := &testHTTPPlugin{
		testPlugin: *newTestPlugin("fleet"),
		routes: []plugin.Route{
			{Method: "GET", Path: "/devices"},
		},
	}
	reg.Register(hp)
	reg.Register(newTestPlugin("noroutes"))

	reg.Validate()
	ctx := context.Background()
	reg.InitAll(ctx, testDeps())

	routes := reg.AllRoutes()
	if len(routes) != 1 {
		t.Fatalf("AllRoutes() returned %d module route sets, want 1", len(routes))
	}
	if _, ok := routes["fleet"]; !ok {
		t.Error("AllRoutes() missing 'fleet' routes")
	}
}

func TestInitAll_WiresEventSubscriber(t *testing.T) {
	reg := New(testLogger())

	p := &testEventSubPlugin{
		testPlugin: *newTestPlugin("notify"),
		subscriptions: []plugin.Subscription{
			{Topic: "fleet.changed", Handler: func(_ context.Context, _ plugin.Event) {}},
			{Topic: "groups.changed", Handler: func(_ context.Context, _ plugin.Event) {}},
		},
	}
	reg.Register(p)
	reg.Validate()

	bus := &testBus{}
	ctx := context.Background()
	err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Logger: testLogger().Named(name),
			Bus:    bus,
		}
	})
	if err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	if len(bus.topics) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(bus.topics))
	}
	if bus.topics[0] != "fleet.changed" || bus.topics[1] != "groups.changed" {
		t.Errorf("subscribed topics = %v", bus.topics)
	}
}

func TestStopAll_ReverseOrder(t *testing.T) {
	var stopOrder []string
	reg := New(testLogger())

	// fleet has no deps, groups depends on fleet, commands depends on groups.
	// Stop order should be the reverse of the start order.
	reg.Register(newShutdownPlugin("fleet", &stopOrder))
	reg.Register(newShutdownPlugin("groups", &stopOrder, "fleet"))
	reg.Register(newShutdownPlugin("commands", &stopOrder, "groups"))
	reg.Validate()

	ctx := context.Background()
	reg.InitAll(ctx, testDeps())
	reg.StartAll(ctx)
	reg.StopAll(ctx)

	expected := []string{"commands", "groups", "fleet"}
	if len(stopOrder) != len(expected) {
		t.Fatalf("stop order length = %d, want %d", len(stopOrder), len(expected))
	}
	for i, name := range expected {
		if stopOrder[i] != name {
			t.Errorf("stop order[%d] = %q, want %q", i, stopOrder[i], name)
		}
	}
}

// panicPlugin panics on configurable lifecycle methods.
type panicPlugin struct {
	testPlugin
	panicOnInit  bool
	panicOnStart bool
	panicOnStop  bool
}

func (p *panicPlugin) Init(ctx context.Context, deps plugin.Dependencies) error {
	if p.panicOnInit {
		panic("test panic in Init")
	}
	return p.testPlugin.Init(ctx, deps)
}

func (p *panicPlugin) Start(ctx context.Context) error {
	if p.panicOnStart {
		panic("test panic in Start")
	}
	return p.testPlugin.Start(ctx)
}

func (p *panicPlugin) Stop(ctx context.Context) error {
	if p.panicOnStop {
		panic("test panic in Stop")
	}
	return p.testPlugin.Stop(ctx)
}

func TestInitAll_PanicRecovery_OptionalModule(t *testing.T) {
	reg := New(testLogger())

	pp := &panicPlugin{
		testPlugin:  *newTestPlugin("panicker"),
		panicOnInit: true,
	}
	normal := newTestPlugin("normal")

	reg.Register(pp)
	reg.Register(normal)
	reg.Validate()

	ctx := context.Background()
	if err := reg.InitAll(ctx, testDeps()); err != nil {
		t.Fatalf("InitAll() error = %v, want nil (optional panic should not propagate)", err)
	}

	if !reg.IsDisabled("panicker") {
		t.Error("expected panicking optional module to be disabled")
	}
	if reg.IsDisabled("normal") {
		t.Error("expected normal module to remain active")
	}
}

func TestInitAll_PanicRecovery_RequiredModule(t *testing.T) {
	reg := New(testLogger())

	pp := &panicPlugin{
		testPlugin:  *newTestPlugin("panicker"),
		panicOnInit: true,
	}
	pp.info.Required = true

	reg.Register(pp)
	reg.Validate()

	ctx := context.Background()
	err := reg.InitAll(ctx, testDeps())
	if err == nil {
		t.Fatal("InitAll() expected error for required panicking module, got nil")
	}
	if got := err.Error(); !strings.Contains(got, "panicked") {
		t.Errorf("error = %q, want it to contain 'panicked'", got)
	}
}

func TestStopAll_PanicRecovery(t *testing.T) {
	reg := New(testLogger())

	pp := &panicPlugin{
		testPlugin:  *newTestPlugin("panicker"),
		panicOnStop: true,
	}

	var stopOrder []string
	normal := newShutdownPlugin("normal", &stopOrder)

	reg.Register(pp)
	reg.Register(normal)
	reg.Validate()

	ctx := context.Background()
	reg.InitAll(ctx, testDeps())
	reg.StartAll(ctx)

	// Should not panic.
	reg.StopAll(ctx)

	found := false
	for _, name := range stopOrder {
		if name == "normal" {
			found = true
		}
	}
	if !found {
		t.Error("expected normal module Stop() to be called despite other module panicking")
	}
}
