// Package settings stores runtime-changeable console configuration in a
// flat key/value table, and holds the bcrypt-hashed agent API key that
// gates device check-ins.
package settings

import (
	"context"
	"time"

	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Event topic published after settings change.
const TopicChanged = "settings.changed"

// Module implements the settings plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	store  *Store
}

// New creates a new settings module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "settings",
		Version:     "0.1.0",
		Description: "Runtime console settings and agent key management",
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "settings", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB())

	m.logger.Info("settings module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop(_ context.Context) error  { return nil }

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/settings", Handler: m.handleGetSettings},
		{Method: "PUT", Path: "/settings", Handler: m.handleSaveSettings},
		{Method: "PUT", Path: "/settings/agent-key", Handler: m.handleSetAgentKey},
		{Method: "DELETE", Path: "/settings/agent-key", Handler: m.handleClearAgentKey},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if _, err := m.store.Load(ctx); err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{Status: "ok"}
}

// VerifyAgentKey lets the fleet module authenticate device check-ins
// without importing this package.
func (m *Module) VerifyAgentKey(ctx context.Context, key string) (bool, error) {
	return m.store.VerifyAgentKey(ctx, key)
}

// Store exposes the settings repository to sibling modules.
func (m *Module) Store() *Store {
	return m.store
}

func (m *Module) publishChanged(ctx context.Context) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicChanged,
		Source:    "settings",
		Timestamp: time.Now(),
	})
}
