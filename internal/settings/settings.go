package settings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Stored keys. The agent key hash is deliberately not part of Settings;
// it is set-only and never leaves the server.
const (
	keyBrokerURL         = "broker_url"
	keyDefaultStreamURL  = "default_stream_url"
	keyHeartbeatInterval = "heartbeat_interval"
	keyAutoCleanup       = "auto_cleanup"
	keyAgentKeyHash      = "agent_key_hash"
)

// Settings is the typed view of the console configuration that
// operators can change at runtime.
type Settings struct {
	// BrokerURL is the MQTT broker notifications are published to.
	BrokerURL string `json:"broker_url"`

	// DefaultStreamURL is assigned to devices registered without one.
	DefaultStreamURL string `json:"default_stream_url"`

	// HeartbeatInterval is pushed to agents as their check-in cadence.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// AutoCleanup enables the scheduled duplicate-device pass.
	AutoCleanup bool `json:"auto_cleanup"`

	// AgentKeySet reports whether an agent API key is configured. The
	// key itself is never returned.
	AgentKeySet bool `json:"agent_key_set"`
}

// Defaults for keys with no stored value.
var defaults = Settings{
	HeartbeatInterval: 30 * time.Second,
}

// Load reads the typed settings, falling back to defaults for absent
// keys.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	stored, err := s.All(ctx)
	if err != nil {
		return Settings{}, err
	}

	out := defaults
	if v, ok := stored[keyBrokerURL]; ok {
		out.BrokerURL = v
	}
	if v, ok := stored[keyDefaultStreamURL]; ok {
		out.DefaultStreamURL = v
	}
	if v, ok := stored[keyHeartbeatInterval]; ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			out.HeartbeatInterval = d
		}
	}
	if v, ok := stored[keyAutoCleanup]; ok {
		out.AutoCleanup = v == "true"
	}
	_, out.AgentKeySet = stored[keyAgentKeyHash]
	return out, nil
}

// SaveParams holds typed settings updates. Nil fields are untouched.
type SaveParams struct {
	BrokerURL         *string
	DefaultStreamURL  *string
	HeartbeatInterval *time.Duration
	AutoCleanup       *bool
}

// Save persists the non-nil fields.
func (s *Store) Save(ctx context.Context, p SaveParams) error {
	if p.BrokerURL != nil {
		if err := s.Set(ctx, keyBrokerURL, *p.BrokerURL); err != nil {
			return err
		}
	}
	if p.DefaultStreamURL != nil {
		if err := s.Set(ctx, keyDefaultStreamURL, *p.DefaultStreamURL); err != nil {
			return err
		}
	}
	if p.HeartbeatInterval != nil {
		if err := s.Set(ctx, keyHeartbeatInterval, p.HeartbeatInterval.String()); err != nil {
			return err
		}
	}
	if p.AutoCleanup != nil {
		if err := s.Set(ctx, keyAutoCleanup, strconv.FormatBool(*p.AutoCleanup)); err != nil {
			return err
		}
	}
	return nil
}

// SetAgentKey stores a bcrypt hash of the agent API key. The cleartext
// is never written.
func (s *Store) SetAgentKey(ctx context.Context, key string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.Set(ctx, keyAgentKeyHash, string(hash))
}

// ClearAgentKey removes the stored key, reopening check-ins.
func (s *Store) ClearAgentKey(ctx context.Context) error {
	return s.Delete(ctx, keyAgentKeyHash)
}

// VerifyAgentKey checks a presented key against the stored hash. When no
// key is configured every presented key passes; check-ins are then
// unauthenticated by choice, not by accident.
func (s *Store) VerifyAgentKey(ctx context.Context, key string) (bool, error) {
	hash, err := s.Get(ctx, keyAgentKeyHash)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil, nil
}
