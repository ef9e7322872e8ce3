// Package groups owns streaming groups: collections of radios that play
// the same stream. It keeps the derived device counts honest and handles
// bulk membership changes with a stop/settle/play sequence.
package groups

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/radiorevive/console/internal/commands"
	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Event topic published after every group mutation.
const TopicChanged = "groups.changed"

// Config holds groups module settings.
type Config struct {
	// SettleDelay is how long to wait between stopping a playing device
	// and restarting it on the new stream.
	SettleDelay time.Duration
}

// DefaultConfig returns the groups defaults.
func DefaultConfig() Config {
	return Config{SettleDelay: time.Second}
}

// Module implements the streaming groups plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	store    *Store
	bus      plugin.EventBus
	assigner *assigner

	devices    DeviceStore
	counter    DeviceCounter
	dispatcher PlaybackDispatcher
	detach     func(ctx context.Context, groupID string) (int, error)
}

// New creates a new groups module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "groups",
		Version:      "0.1.0",
		Description:  "Streaming groups, device counts, and bulk assignment",
		Required:     true,
		Dependencies: []string{"fleet", "commands"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if d := deps.Config.GetDuration("settle_delay"); d > 0 {
			m.cfg.SettleDelay = d
		}
	}

	if err := deps.Store.Migrate(ctx, "groups", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB())

	// Fleet and commands are declared dependencies, so the registry
	// initializes them first and resolution cannot race.
	fleetStore, err := resolveFleet(deps.Plugins)
	if err != nil {
		return err
	}
	m.devices = fleetStore
	m.counter = fleetStore
	m.detach = fleetStore.ClearGroupAssignments

	dispatcher, err := resolveDispatcher(deps.Plugins)
	if err != nil {
		return err
	}
	m.dispatcher = dispatcher

	m.assigner = &assigner{
		devices:     m.devices,
		dispatcher:  m.dispatcher,
		settleDelay: m.cfg.SettleDelay,
		sleep:       time.Sleep,
		logger:      m.logger,
	}

	m.logger.Info("groups module initialized",
		zap.Duration("settle_delay", m.cfg.SettleDelay))
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop(_ context.Context) error  { return nil }

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/groups", Handler: m.handleListGroups},
		{Method: "POST", Path: "/groups", Handler: m.handleCreateGroup},
		{Method: "GET", Path: "/groups/{id}", Handler: m.handleGetGroup},
		{Method: "PATCH", Path: "/groups/{id}", Handler: m.handleUpdateGroup},
		{Method: "DELETE", Path: "/groups/{id}", Handler: m.handleDeleteGroup},
		{Method: "POST", Path: "/groups/{id}/assign", Handler: m.handleAssignDevices},
		{Method: "POST", Path: "/sync", Handler: m.handleSyncCounts},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	count, err := m.store.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status:  "ok",
		Details: map[string]string{"groups": strconv.Itoa(count)},
	}
}

// Store exposes the groups store to scripts and the CLI.
func (m *Module) Store() *Store {
	return m.store
}

// Watch invokes fn with the full group collection immediately and again
// after every group mutation. The returned func cancels the subscription;
// calling it more than once is a no-op.
func (m *Module) Watch(ctx context.Context, fn func([]models.Group)) (unsubscribe func()) {
	emit := func(ctx context.Context) {
		groups, err := m.store.List(ctx)
		if err != nil {
			m.logger.Error("group snapshot failed", zap.Error(err))
			return
		}
		fn(groups)
	}
	emit(ctx)
	if m.bus == nil {
		return func() {}
	}
	return m.bus.Subscribe(TopicChanged, func(ctx context.Context, _ plugin.Event) {
		emit(ctx)
	})
}

// Assign runs a bulk assignment by group ID. The HTTP handler and the
// CLI both go through here so change events cannot be skipped.
func (m *Module) Assign(ctx context.Context, groupID string, deviceIDs []string) (AssignReport, error) {
	g, err := m.store.Get(ctx, groupID)
	if err != nil {
		return AssignReport{}, err
	}
	report, err := m.assigner.Assign(ctx, g, deviceIDs)
	if err != nil {
		return report, err
	}

	// Membership changed, so the stored count just drifted. Fix it now
	// rather than waiting for the next sync pass.
	if count, err := m.counter.CountByGroup(ctx, g.ID); err == nil {
		_ = m.store.SetDeviceCount(ctx, g.ID, count)
	}

	m.publishChanged(ctx)
	if report.Assigned > 0 {
		m.publishDevicesChanged(ctx)
	}
	return report, nil
}

func (m *Module) publishChanged(ctx context.Context) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicChanged,
		Source:    "groups",
		Timestamp: time.Now(),
	})
}

// publishDevicesChanged signals device-collection subscribers after this
// module writes fleet rows (bulk assignment, group-delete detach). Without
// it watchers would not see the new group or stream until an unrelated
// fleet mutation fired.
func (m *Module) publishDevicesChanged(ctx context.Context) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     fleet.TopicChanged,
		Source:    "groups",
		Timestamp: time.Now(),
	})
}

func resolveFleet(plugins plugin.PluginResolver) (*fleet.Store, error) {
	if plugins == nil {
		return nil, fmt.Errorf("plugin resolver not available")
	}
	p, ok := plugins.Resolve("fleet")
	if !ok {
		return nil, fmt.Errorf("fleet module not available")
	}
	provider, ok := p.(interface{ Store() *fleet.Store })
	if !ok {
		return nil, fmt.Errorf("fleet module does not expose a device store")
	}
	return provider.Store(), nil
}

func resolveDispatcher(plugins plugin.PluginResolver) (*commands.Dispatcher, error) {
	if plugins == nil {
		return nil, fmt.Errorf("plugin resolver not available")
	}
	p, ok := plugins.Resolve("commands")
	if !ok {
		return nil, fmt.Errorf("commands module not available")
	}
	provider, ok := p.(interface{ Dispatcher() *commands.Dispatcher })
	if !ok {
		return nil, fmt.Errorf("commands module does not expose a dispatcher")
	}
	return provider.Dispatcher(), nil
}
