package fleet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
	"go.uber.org/zap"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an RFC 7807 problem detail response.
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

// DeviceCreateRequest is the request body for POST /devices.
type DeviceCreateRequest struct {
	DeviceID  string `json:"device_id" example:"radio-a1b2c3"`
	Name      string `json:"name" example:"Front Counter"`
	IPAddress string `json:"ip_address" example:"192.168.1.42"`
	GroupID   string `json:"group_id,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
	Volume    *int   `json:"volume,omitempty"`
}

// DeviceUpdateRequest is the request body for PATCH /devices/{id}.
// Absent keys leave fields untouched; JSON null erases them.
type DeviceUpdateRequest struct {
	Name      patch.Field[string] `json:"name"`
	Status    patch.Field[string] `json:"status"`
	IPAddress patch.Field[string] `json:"ip_address"`
	GroupID   patch.Field[string] `json:"group_id"`
	StreamURL patch.Field[string] `json:"stream_url"`
	Volume    patch.Field[int]    `json:"volume"`
	DeviceID  patch.Field[string] `json:"device_id"`
}

// handleListDevices returns the full device collection.
//
//	@Summary		List devices
//	@Description	Returns all radio devices in normalized form.
//	@Tags			fleet
//	@Produce		json
//	@Success		200	{array}	models.Device
//	@Router			/fleet/devices [get]
func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := m.store.ListProjected(r.Context())
	if err != nil {
		m.logger.Error("failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns one device.
//
//	@Summary		Get device
//	@Tags			fleet
//	@Produce		json
//	@Param			id	path		string	true	"Device row ID"
//	@Success		200	{object}	models.Device
//	@Failure		404	{object}	server.Problem
//	@Router			/fleet/devices/{id} [get]
func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	row, err := m.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, Project(row))
}

// handleCreateDevice registers a device manually.
//
//	@Summary		Register device
//	@Tags			fleet
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DeviceCreateRequest	true	"Device to register"
//	@Success		201		{object}	models.Device
//	@Failure		400		{object}	server.Problem
//	@Router			/fleet/devices [post]
func (m *Module) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	volume := 50
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 100 {
			writeError(w, http.StatusBadRequest, "volume must be between 0 and 100")
			return
		}
		volume = *req.Volume
	}

	id, err := m.store.Create(r.Context(), CreateParams{
		DeviceID:  req.DeviceID,
		Name:      req.Name,
		Status:    string(models.DeviceStatusUnconfigured),
		IPAddress: req.IPAddress,
		GroupID:   req.GroupID,
		StreamURL: req.StreamURL,
		Volume:    volume,
	})
	if err != nil {
		m.logger.Error("failed to create device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create device")
		return
	}

	m.publishChanged(r.Context())

	row, err := m.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load created device")
		return
	}
	writeJSON(w, http.StatusCreated, Project(row))
}

// handleUpdateDevice applies a partial update.
//
//	@Summary		Update device
//	@Description	Partial update. Absent keys are untouched, JSON null erases the field.
//	@Tags			fleet
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Device row ID"
//	@Param			request	body		DeviceUpdateRequest	true	"Fields to change"
//	@Success		200		{object}	models.Device
//	@Failure		400		{object}	server.Problem
//	@Failure		404		{object}	server.Problem
//	@Router			/fleet/devices/{id} [patch]
func (m *Module) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req DeviceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if v, ok := req.Volume.Value(); ok && (v < 0 || v > 100) {
		writeError(w, http.StatusBadRequest, "volume must be between 0 and 100")
		return
	}
	if v, ok := req.Status.Value(); ok && !models.KnownDeviceStatus(models.DeviceStatus(v)) {
		writeError(w, http.StatusBadRequest, "unknown device status")
		return
	}
	if req.DeviceID.IsClear() {
		// Hardware identity may be corrected but never erased; the dedup
		// pass and agent check-ins key on it.
		writeError(w, http.StatusBadRequest, "device_id cannot be cleared")
		return
	}

	err := m.store.Update(r.Context(), id, UpdateParams{
		Name:      req.Name,
		Status:    req.Status,
		IPAddress: req.IPAddress,
		GroupID:   req.GroupID,
		StreamURL: req.StreamURL,
		Volume:    req.Volume,
		DeviceID:  req.DeviceID,
	})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to update device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update device")
		return
	}

	m.publishChanged(r.Context())

	row, err := m.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated device")
		return
	}
	writeJSON(w, http.StatusOK, Project(row))
}

// handleDeleteDevice removes a device. Deleting an unknown ID returns 204
// as well; the end state is identical.
//
//	@Summary		Delete device
//	@Tags			fleet
//	@Param			id	path	string	true	"Device row ID"
//	@Success		204
//	@Router			/fleet/devices/{id} [delete]
func (m *Module) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	removed, err := m.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		m.logger.Error("failed to delete device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	if removed {
		m.publishChanged(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCleanup runs a duplicate-removal pass and reports what it did.
//
//	@Summary		Remove duplicate devices
//	@Tags			fleet
//	@Produce		json
//	@Success		200	{object}	CleanupReport
//	@Router			/fleet/devices/cleanup [post]
func (m *Module) handleCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := m.store.Cleanup(r.Context(), m.logger)
	if err != nil {
		m.logger.Error("duplicate cleanup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "duplicate cleanup failed")
		return
	}
	if report.Removed > 0 {
		m.publishChanged(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}

// CheckinRequest is the agent heartbeat body for POST /checkin.
type CheckinRequest struct {
	DeviceID          string  `json:"device_id"`
	Name              string  `json:"name,omitempty"`
	Status            string  `json:"status"`
	IPAddress         string  `json:"ip_address"`
	WifiConnected     bool    `json:"wifi_connected"`
	EthernetConnected bool    `json:"ethernet_connected"`
	StreamURL         string  `json:"stream_url,omitempty"`
	Volume            int     `json:"volume"`
	CPUUsage          float64 `json:"cpu_usage"`
	MemoryUsage       float64 `json:"memory_usage"`
	DiskUsage         float64 `json:"disk_usage"`
	UptimeSec         int64   `json:"uptime_sec"`
	FirmwareVersion   string  `json:"firmware_version,omitempty"`
}

// handleCheckin accepts a device agent heartbeat. Requires the X-Agent-Key
// header when the settings module holds an agent key.
//
//	@Summary		Agent check-in
//	@Tags			fleet
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CheckinRequest	true	"Agent report"
//	@Success		200		{object}	map[string]string
//	@Failure		401		{object}	server.Problem
//	@Router			/fleet/checkin [post]
func (m *Module) handleCheckin(w http.ResponseWriter, r *http.Request) {
	m.checkinWithVerifier(w, r, m.agentKeyVerifier())
}

func (m *Module) checkinWithVerifier(w http.ResponseWriter, r *http.Request, verifier AgentKeyVerifier) {
	if verifier != nil {
		ok, err := verifier.VerifyAgentKey(r.Context(), r.Header.Get("X-Agent-Key"))
		if err != nil {
			m.logger.Error("agent key verification failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "agent key verification failed")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid agent key")
			return
		}
	}

	var req CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	id, created, err := m.store.Checkin(r.Context(), CheckinParams{
		DeviceID:          req.DeviceID,
		Name:              req.Name,
		Status:            req.Status,
		IPAddress:         req.IPAddress,
		WifiConnected:     req.WifiConnected,
		EthernetConnected: req.EthernetConnected,
		StreamURL:         req.StreamURL,
		Volume:            req.Volume,
		CPUUsage:          req.CPUUsage,
		MemoryUsage:       req.MemoryUsage,
		DiskUsage:         req.DiskUsage,
		UptimeSec:         req.UptimeSec,
		FirmwareVersion:   req.FirmwareVersion,
	})
	if err != nil {
		m.logger.Error("checkin failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkin failed")
		return
	}

	_ = m.bus.Publish(r.Context(), pluginEvent(TopicDeviceCheckin, CheckinEvent{
		ID:       id,
		DeviceID: req.DeviceID,
		Status:   req.Status,
		IP:       req.IPAddress,
	}))
	m.publishChanged(r.Context())

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"id": id})
}

// agentKeyVerifier resolves the settings module if present.
func (m *Module) agentKeyVerifier() AgentKeyVerifier {
	if m.plugins == nil {
		return nil
	}
	p, ok := m.plugins.Resolve("settings")
	if !ok {
		return nil
	}
	v, ok := p.(AgentKeyVerifier)
	if !ok {
		return nil
	}
	return v
}
