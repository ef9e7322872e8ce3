// Package commands owns the global device command queue: a single
// append-only table every agent polls. The console writes typed entries
// through the Dispatcher; devices consume them and report back.
package commands

import (
	"context"
	"strconv"

	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the command queue plugin.
type Module struct {
	logger     *zap.Logger
	store      *Store
	bus        plugin.EventBus
	dispatcher *Dispatcher
}

// New creates a new commands module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "commands",
		Version:     "0.1.0",
		Description: "Global device command queue and dispatcher",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "commands", migrations()); err != nil {
		return err
	}

	m.store = NewStore(deps.Store.DB())
	m.dispatcher = NewDispatcher(m.store, m.bus, m.logger)

	m.logger.Info("commands module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop(_ context.Context) error  { return nil }

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/queue", Handler: m.handleDispatch},
		{Method: "GET", Path: "/queue", Handler: m.handleListQueue},
		{Method: "POST", Path: "/queue/{id}/processed", Handler: m.handleMarkProcessed},
		{Method: "GET", Path: "/pending/{deviceID}", Handler: m.handlePending},
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
		Details: map[string]string{"queued": strconv.Itoa(count)},
	}
}

// Dispatcher exposes the typed command API to sibling modules.
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}
