package settings

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://radiorevive.io/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// SettingsRequest is the request body for PUT /settings. Absent fields
// are untouched.
type SettingsRequest struct {
	BrokerURL         *string `json:"broker_url,omitempty"`
	DefaultStreamURL  *string `json:"default_stream_url,omitempty"`
	HeartbeatInterval *string `json:"heartbeat_interval,omitempty"` // Go duration string
	AutoCleanup       *bool   `json:"auto_cleanup,omitempty"`
}

// AgentKeyRequest is the request body for PUT /settings/agent-key.
type AgentKeyRequest struct {
	Key string `json:"key"`
}

// handleGetSettings returns the typed settings. The agent key is
// reported only as set or unset.
//
//	@Summary		Get settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	Settings
//	@Router			/settings/settings [get]
func (m *Module) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := m.store.Load(r.Context())
	if err != nil {
		m.logger.Error("failed to load settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handleSaveSettings persists the provided fields.
//
//	@Summary		Update settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SettingsRequest	true	"Fields to change"
//	@Success		200		{object}	Settings
//	@Failure		400		{object}	server.Problem
//	@Router			/settings/settings [put]
func (m *Module) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params := SaveParams{
		BrokerURL:        req.BrokerURL,
		DefaultStreamURL: req.DefaultStreamURL,
		AutoCleanup:      req.AutoCleanup,
	}
	if req.HeartbeatInterval != nil {
		d, err := time.ParseDuration(*req.HeartbeatInterval)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "heartbeat_interval must be a positive duration")
			return
		}
		params.HeartbeatInterval = &d
	}

	if err := m.store.Save(r.Context(), params); err != nil {
		m.logger.Error("failed to save settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	m.publishChanged(r.Context())

	s, err := m.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handleSetAgentKey stores a new agent API key. Only a bcrypt hash is
// kept; the key cannot be read back.
//
//	@Summary		Set agent API key
//	@Tags			settings
//	@Accept			json
//	@Param			request	body	AgentKeyRequest	true	"New key"
//	@Success		204
//	@Failure		400	{object}	server.Problem
//	@Router			/settings/settings/agent-key [put]
func (m *Module) handleSetAgentKey(w http.ResponseWriter, r *http.Request) {
	var req AgentKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Key) < 8 {
		writeError(w, http.StatusBadRequest, "key must be at least 8 characters")
		return
	}

	if err := m.store.SetAgentKey(r.Context(), req.Key); err != nil {
		m.logger.Error("failed to set agent key", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to set agent key")
		return
	}

	m.logger.Info("agent key rotated")
	m.publishChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleClearAgentKey removes the agent key, reopening check-ins.
//
//	@Summary		Clear agent API key
//	@Tags			settings
//	@Success		204
//	@Router			/settings/settings/agent-key [delete]
func (m *Module) handleClearAgentKey(w http.ResponseWriter, r *http.Request) {
	if err := m.store.ClearAgentKey(r.Context()); err != nil {
		m.logger.Error("failed to clear agent key", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear agent key")
		return
	}
	m.logger.Info("agent key cleared")
	m.publishChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
