// Package notify forwards console events to an MQTT broker so external
// systems (store dashboards, alerting) can react without polling the
// API. With no broker configured the module disables itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radiorevive/console/internal/commands"
	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// Config holds notify module settings.
type Config struct {
	BrokerURL   string
	TopicPrefix string
	ClientID    string
	QoS         byte
}

// DefaultConfig returns the notify defaults.
func DefaultConfig() Config {
	return Config{
		TopicPrefix: "console",
		ClientID:    "console-notify",
		QoS:         1,
	}
}

// Module implements the MQTT notification plugin.
type Module struct {
	logger    *zap.Logger
	cfg       Config
	publisher Publisher
}

// New creates a new notify module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "notify",
		Version:     "0.1.0",
		Description: "MQTT notifications for device and command events",
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if v := deps.Config.GetString("broker_url"); v != "" {
			m.cfg.BrokerURL = v
		}
		if v := deps.Config.GetString("topic_prefix"); v != "" {
			m.cfg.TopicPrefix = v
		}
		if v := deps.Config.GetString("client_id"); v != "" {
			m.cfg.ClientID = v
		}
		if deps.Config.IsSet("qos") {
			if q := deps.Config.GetInt("qos"); q >= 0 && q <= 2 {
				m.cfg.QoS = byte(q)
			}
		}
	}

	m.logger.Info("notify module initialized",
		zap.String("topic_prefix", m.cfg.TopicPrefix))
	return nil
}

// ValidateConfig disables the module when no broker is configured; the
// registry treats a failing optional module as off, not broken.
func (m *Module) ValidateConfig() error {
	if m.cfg.BrokerURL == "" {
		return fmt.Errorf("broker_url not configured")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.publisher != nil {
		return nil
	}
	pub, err := connectMQTT(m.cfg.BrokerURL, m.cfg.ClientID, m.cfg.QoS, m.logger)
	if err != nil {
		return err
	}
	m.publisher = pub
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.publisher != nil {
		m.publisher.Close()
		m.publisher = nil
	}
	m.logger.Info("notify module stopped")
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: fleet.TopicDeviceLost, Handler: m.onDeviceLost},
		{Topic: fleet.TopicDeviceCheckin, Handler: m.onDeviceCheckin},
		{Topic: commands.TopicDispatched, Handler: m.onCommandDispatched},
	}
}

func (m *Module) onDeviceLost(_ context.Context, event plugin.Event) {
	m.forward("device/lost", event.Payload)
}

func (m *Module) onDeviceCheckin(_ context.Context, event plugin.Event) {
	m.forward("device/checkin", event.Payload)
}

func (m *Module) onCommandDispatched(_ context.Context, event plugin.Event) {
	m.forward("command/dispatched", event.Payload)
}

func (m *Module) forward(suffix string, payload any) {
	if m.publisher == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("failed to encode notification", zap.Error(err))
		return
	}

	topic := m.cfg.TopicPrefix + "/" + suffix
	if err := m.publisher.Publish(topic, body); err != nil {
		m.logger.Error("failed to publish notification",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("notification published", zap.String("topic", topic))
}
