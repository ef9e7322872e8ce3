// Package fleet owns the radio device collection: registration, agent
// check-ins, normalization of legacy rows, duplicate cleanup, and the
// lost-device checker.
package fleet

import (
	"context"
	"strconv"
	"sync"
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

// Config holds fleet module settings.
type Config struct {
	// HeartbeatTimeout is how long a device may stay silent before the
	// lost checker considers it for offlining.
	HeartbeatTimeout  time.Duration
	LostCheckInterval time.Duration
	PingTimeout       time.Duration
	PingCount         int
}

// DefaultConfig returns the fleet defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout:  90 * time.Second,
		LostCheckInterval: time.Minute,
		PingTimeout:       2 * time.Second,
		PingCount:         3,
	}
}

// AgentKeyVerifier checks the API key presented by a device agent.
// Implemented by the settings module; resolved lazily so fleet works
// without it (check-ins are then unauthenticated).
type AgentKeyVerifier interface {
	VerifyAgentKey(ctx context.Context, key string) (bool, error)
}

// Module implements the fleet device plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	store   *Store
	bus     plugin.EventBus
	pinger  Pinger
	plugins plugin.PluginResolver

	wg        sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a new fleet module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "fleet",
		Version:     "0.1.0",
		Description: "Radio device inventory, check-ins, and lost-device detection",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.plugins = deps.Plugins

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if d := deps.Config.GetDuration("heartbeat_timeout"); d > 0 {
			m.cfg.HeartbeatTimeout = d
		}
		if d := deps.Config.GetDuration("lost_check_interval"); d > 0 {
			m.cfg.LostCheckInterval = d
		}
		if d := deps.Config.GetDuration("ping_timeout"); d > 0 {
			m.cfg.PingTimeout = d
		}
		if v := deps.Config.GetInt("ping_count"); v > 0 {
			m.cfg.PingCount = v
		}
	}

	if err := deps.Store.Migrate(ctx, "fleet", migrations()); err != nil {
		return err
	}

	m.store = NewStore(deps.Store.DB())
	if m.pinger == nil {
		m.pinger = NewICMPPinger(m.cfg.PingTimeout, m.cfg.PingCount, m.logger.Named("ping"))
	}

	m.logger.Info("fleet module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.runCtx, m.runCancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.runLostChecker()

	m.logger.Info("fleet module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.runCancel != nil {
		m.runCancel()
	}
	m.wg.Wait()
	m.logger.Info("fleet module stopped")
	return nil
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "POST", Path: "/devices", Handler: m.handleCreateDevice},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "PATCH", Path: "/devices/{id}", Handler: m.handleUpdateDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleDeleteDevice},
		{Method: "POST", Path: "/devices/cleanup", Handler: m.handleCleanup},
		{Method: "POST", Path: "/checkin", Handler: m.handleCheckin},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	count, err := m.store.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"devices":           strconv.Itoa(count),
			"heartbeat_timeout": m.cfg.HeartbeatTimeout.String(),
		},
	}
}

// Store exposes the fleet store to sibling modules (groups sync, scripts).
func (m *Module) Store() *Store {
	return m.store
}

// Watch invokes fn with the projected device collection immediately and
// again after every fleet mutation. The returned func cancels the
// subscription; calling it more than once is a no-op.
func (m *Module) Watch(ctx context.Context, fn func([]models.Device)) (unsubscribe func()) {
	emit := func(ctx context.Context) {
		devices, err := m.store.ListProjected(ctx)
		if err != nil {
			m.logger.Error("device snapshot failed", zap.Error(err))
			return
		}
		fn(devices)
	}
	emit(ctx)
	if m.bus == nil {
		return func() {}
	}
	return m.bus.Subscribe(TopicChanged, func(ctx context.Context, _ plugin.Event) {
		emit(ctx)
	})
}

// publishChanged signals collection subscribers to re-read.
func (m *Module) publishChanged(ctx context.Context) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicChanged,
		Source:    "fleet",
		Timestamp: time.Now(),
	})
}

// runLostChecker periodically offlines devices whose agents stopped
// reporting, after confirming by ping that the host is really unreachable.
func (m *Module) runLostChecker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.LostCheckInterval)
	defer ticker.Stop()

	m.logger.Info("lost device checker started",
		zap.Duration("check_interval", m.cfg.LostCheckInterval),
		zap.Duration("heartbeat_timeout", m.cfg.HeartbeatTimeout),
	)

	for {
		select {
		case <-m.runCtx.Done():
			m.logger.Info("lost device checker stopped")
			return
		case <-ticker.C:
			m.checkForLostDevices()
		}
	}
}

func (m *Module) checkForLostDevices() {
	ctx := m.runCtx
	threshold := time.Now().Add(-m.cfg.HeartbeatTimeout)

	stale, err := m.store.FindStale(ctx, threshold)
	if err != nil {
		m.logger.Error("failed to find stale devices", zap.Error(err))
		return
	}

	changed := false
	for i := range stale {
		d := &stale[i]

		if m.pinger.Alive(ctx, d.IPAddress) {
			m.logger.Debug("stale device still answers ping, leaving status",
				zap.String("id", d.ID),
				zap.String("ip", d.IPAddress),
			)
			continue
		}

		if err := m.store.MarkOffline(ctx, d.ID); err != nil {
			m.logger.Error("failed to mark device offline",
				zap.String("id", d.ID),
				zap.Error(err),
			)
			continue
		}
		changed = true

		var lastSeen time.Time
		if d.LastSeen.Valid {
			lastSeen = d.LastSeen.Time
		}
		_ = m.bus.Publish(ctx, plugin.Event{
			Topic:     TopicDeviceLost,
			Source:    "fleet",
			Timestamp: time.Now(),
			Payload: DeviceLostEvent{
				ID:       d.ID,
				DeviceID: d.DeviceID,
				IP:       d.IPAddress,
				LastSeen: lastSeen,
			},
		})

		m.logger.Info("device marked as lost",
			zap.String("id", d.ID),
			zap.String("device_id", d.DeviceID),
			zap.String("ip", d.IPAddress),
		)
	}

	if changed {
		m.publishChanged(ctx)
	}
}
