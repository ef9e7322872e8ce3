package commands

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radiorevive/console/pkg/models"
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

// DispatchRequest is the request body for POST /queue. Action decides
// which payload fields are read; the rest are ignored.
type DispatchRequest struct {
	DeviceID  string `json:"device_id"`
	Action    string `json:"action"`
	StreamURL string `json:"stream_url,omitempty"`
	Volume    *int   `json:"volume,omitempty"`
	SSID      string `json:"ssid,omitempty"`
	Password  string `json:"password,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
	DNS1      string `json:"dns1,omitempty"`
	DNS2      string `json:"dns2,omitempty"`
	Interface string `json:"interface,omitempty"`
}

// handleDispatch validates and queues one command.
//
//	@Summary		Queue a command
//	@Description	Appends a command to the global queue for one device.
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DispatchRequest	true	"Command to queue"
//	@Success		201		{object}	models.Command
//	@Failure		400		{object}	server.Problem
//	@Router			/commands/queue [post]
func (m *Module) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	ctx := r.Context()
	var cmd *models.Command
	var err error

	switch models.CommandAction(req.Action) {
	case models.ActionPlay:
		cmd, err = m.dispatcher.SendPlay(ctx, req.DeviceID, req.StreamURL)
	case models.ActionPause:
		cmd, err = m.dispatcher.SendPause(ctx, req.DeviceID)
	case models.ActionStop:
		cmd, err = m.dispatcher.SendStop(ctx, req.DeviceID)
	case models.ActionVolume:
		if req.Volume == nil {
			writeError(w, http.StatusBadRequest, "volume is required")
			return
		}
		if *req.Volume < 0 || *req.Volume > 100 {
			writeError(w, http.StatusBadRequest, "volume must be between 0 and 100")
			return
		}
		cmd, err = m.dispatcher.SendVolume(ctx, req.DeviceID, *req.Volume)
	case models.ActionWifiConfig:
		if req.SSID == "" {
			writeError(w, http.StatusBadRequest, "ssid is required")
			return
		}
		cmd, err = m.dispatcher.SendWifiConfig(ctx, req.DeviceID, req.SSID, req.Password)
	case models.ActionNetworkConfig:
		cmd, err = m.dispatcher.SendNetworkConfig(ctx, req.DeviceID, NetworkConfig{
			IPAddress: req.IPAddress,
			Gateway:   req.Gateway,
			DNS1:      req.DNS1,
			DNS2:      req.DNS2,
			Interface: req.Interface,
		})
	case models.ActionSystemUpdate:
		cmd, err = m.dispatcher.SendSystemUpdate(ctx, req.DeviceID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		m.logger.Error("failed to queue command", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}
	writeJSON(w, http.StatusCreated, cmd)
}

// handleListQueue lists queue entries, optionally filtered by device.
//
//	@Summary		List queued commands
//	@Tags			commands
//	@Produce		json
//	@Param			device_id			query	string	false	"Filter by device"
//	@Param			include_processed	query	bool	false	"Include consumed entries"
//	@Success		200	{array}	models.Command
//	@Router			/commands/queue [get]
func (m *Module) handleListQueue(w http.ResponseWriter, r *http.Request) {
	opts := ListOptions{
		DeviceID:         r.URL.Query().Get("device_id"),
		IncludeProcessed: r.URL.Query().Get("include_processed") == "true",
	}
	cmds, err := m.store.List(r.Context(), opts)
	if err != nil {
		m.logger.Error("failed to list commands", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	if cmds == nil {
		cmds = []models.Command{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

// handlePending returns a device's unprocessed commands in arrival order.
// This is the agent's poll endpoint.
//
//	@Summary		Pending commands for a device
//	@Tags			commands
//	@Produce		json
//	@Param			deviceID	path	string	true	"Hardware device ID"
//	@Success		200	{array}	models.Command
//	@Router			/commands/pending/{deviceID} [get]
func (m *Module) handlePending(w http.ResponseWriter, r *http.Request) {
	cmds, err := m.store.PendingForDevice(r.Context(), r.PathValue("deviceID"))
	if err != nil {
		m.logger.Error("failed to load pending commands", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load pending commands")
		return
	}
	if cmds == nil {
		cmds = []models.Command{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

// handleMarkProcessed acknowledges that the agent consumed a command.
//
//	@Summary		Mark command processed
//	@Tags			commands
//	@Param			id	path	string	true	"Command ID"
//	@Success		204
//	@Failure		404	{object}	server.Problem
//	@Router			/commands/queue/{id}/processed [post]
func (m *Module) handleMarkProcessed(w http.ResponseWriter, r *http.Request) {
	err := m.store.MarkProcessed(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "command not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to mark command processed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark command processed")
		return
	}
	if m.bus != nil {
		_ = m.bus.Publish(r.Context(), pluginEvent(TopicChanged, nil))
	}
	w.WriteHeader(http.StatusNoContent)
}
