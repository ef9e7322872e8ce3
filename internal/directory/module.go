// Package directory owns the per-store user accounts. Records live in
// two storage locations, a leftover of the config migration; the
// federation layer hides the split from the API.
package directory

import (
	"context"
	"strconv"
	"time"

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

// Event topic published after every user mutation.
const TopicChanged = "directory.changed"

// Module implements the user directory plugin.
type Module struct {
	logger     *zap.Logger
	bus        plugin.EventBus
	federation *Federation
}

// New creates a new directory module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "directory",
		Version:     "0.1.0",
		Description: "User directory federated across two storage locations",
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "directory", migrations()); err != nil {
		return err
	}

	db := deps.Store.DB()
	m.federation = NewFederation(NewCurrentLocation(db), NewLegacyLocation(db))

	m.logger.Info("directory module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop(_ context.Context) error  { return nil }

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/users", Handler: m.handleListUsers},
		{Method: "POST", Path: "/users", Handler: m.handleCreateUser},
		{Method: "GET", Path: "/users/lookup", Handler: m.handleLookupUser},
		{Method: "GET", Path: "/users/{id}", Handler: m.handleGetUser},
		{Method: "PATCH", Path: "/users/{id}", Handler: m.handleUpdateUser},
		{Method: "DELETE", Path: "/users/{id}", Handler: m.handleDeleteUser},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	count, err := m.federation.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status:  "ok",
		Details: map[string]string{"users": strconv.Itoa(count)},
	}
}

// Federation exposes the user directory to scripts and the CLI.
func (m *Module) Federation() *Federation {
	return m.federation
}

// Watch invokes fn with the full user listing immediately and again after
// every user mutation. The returned func cancels the subscription; calling
// it more than once is a no-op.
func (m *Module) Watch(ctx context.Context, fn func([]models.User)) (unsubscribe func()) {
	emit := func(ctx context.Context) {
		users, err := m.federation.List(ctx)
		if err != nil {
			m.logger.Error("user snapshot failed", zap.Error(err))
			return
		}
		fn(users)
	}
	emit(ctx)
	if m.bus == nil {
		return func() {}
	}
	return m.bus.Subscribe(TopicChanged, func(ctx context.Context, _ plugin.Event) {
		emit(ctx)
	})
}

func (m *Module) publishChanged(ctx context.Context) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicChanged,
		Source:    "directory",
		Timestamp: time.Now(),
	})
}
