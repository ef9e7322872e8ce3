package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

var dispatchedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_commands_dispatched_total",
		Help: "Commands appended to the device queue, by action.",
	},
	[]string{"action"},
)

// Dispatcher appends typed commands to the queue. It trusts its callers:
// payload validation (volume bounds and the like) happens at the HTTP
// layer, not here, so internal callers can enqueue whatever the agent
// protocol allows.
type Dispatcher struct {
	store  *Store
	bus    plugin.EventBus
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store *Store, bus plugin.EventBus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, bus: bus, logger: logger}
}

// NetworkConfig is the static network payload for SendNetworkConfig.
type NetworkConfig struct {
	IPAddress string
	Gateway   string
	DNS1      string
	DNS2      string
	Interface string
}

// SendPlay queues a play command carrying the stream URL to tune to.
func (d *Dispatcher) SendPlay(ctx context.Context, deviceID, streamURL string) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{
		DeviceID:  deviceID,
		Action:    models.ActionPlay,
		StreamURL: streamURL,
	})
}

// SendPause queues a pause command.
func (d *Dispatcher) SendPause(ctx context.Context, deviceID string) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{DeviceID: deviceID, Action: models.ActionPause})
}

// SendStop queues a stop command.
func (d *Dispatcher) SendStop(ctx context.Context, deviceID string) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{DeviceID: deviceID, Action: models.ActionStop})
}

// SendVolume queues a volume change.
func (d *Dispatcher) SendVolume(ctx context.Context, deviceID string, volume int) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{
		DeviceID: deviceID,
		Action:   models.ActionVolume,
		Volume:   &volume,
	})
}

// SendWifiConfig queues wifi credentials for the agent to apply.
func (d *Dispatcher) SendWifiConfig(ctx context.Context, deviceID, ssid, password string) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{
		DeviceID: deviceID,
		Action:   models.ActionWifiConfig,
		SSID:     ssid,
		Password: password,
	})
}

// SendNetworkConfig queues a static network configuration. An empty
// interface name defaults to eth0; empty address fields travel as empty
// strings, which the agent reads as "leave unset".
func (d *Dispatcher) SendNetworkConfig(ctx context.Context, deviceID string, nc NetworkConfig) (*models.Command, error) {
	if nc.Interface == "" {
		nc.Interface = "eth0"
	}
	return d.enqueue(ctx, &models.Command{
		DeviceID:  deviceID,
		Action:    models.ActionNetworkConfig,
		IPAddress: nc.IPAddress,
		Gateway:   nc.Gateway,
		DNS1:      nc.DNS1,
		DNS2:      nc.DNS2,
		Interface: nc.Interface,
	})
}

// SendSystemUpdate queues a firmware update trigger.
func (d *Dispatcher) SendSystemUpdate(ctx context.Context, deviceID string) (*models.Command, error) {
	return d.enqueue(ctx, &models.Command{DeviceID: deviceID, Action: models.ActionSystemUpdate})
}

func (d *Dispatcher) enqueue(ctx context.Context, c *models.Command) (*models.Command, error) {
	if c.DeviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	if err := d.store.Append(ctx, c); err != nil {
		return nil, err
	}
	dispatchedTotal.WithLabelValues(string(c.Action)).Inc()

	d.logger.Info("command queued",
		zap.String("command_id", c.ID),
		zap.String("device_id", c.DeviceID),
		zap.String("action", string(c.Action)),
	)

	if d.bus != nil {
		_ = d.bus.Publish(ctx, pluginEvent(TopicDispatched, DispatchedEvent{
			CommandID: c.ID,
			DeviceID:  c.DeviceID,
			Action:    string(c.Action),
		}))
		_ = d.bus.Publish(ctx, pluginEvent(TopicChanged, nil))
	}
	return c, nil
}
