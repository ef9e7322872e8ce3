package groups

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
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

// GroupCreateRequest is the request body for POST /groups.
type GroupCreateRequest struct {
	Name       string   `json:"name"`
	StreamURL  string   `json:"stream_url,omitempty"`
	MusicFiles []string `json:"music_files,omitempty"`
}

// GroupUpdateRequest is the request body for PATCH /groups/{id}.
// Absent keys leave fields untouched; JSON null erases them.
type GroupUpdateRequest struct {
	Name       patch.Field[string]   `json:"name"`
	StreamURL  patch.Field[string]   `json:"stream_url"`
	MusicFiles patch.Field[[]string] `json:"music_files"`
}

// AssignRequest is the request body for POST /groups/{id}/assign.
type AssignRequest struct {
	DeviceIDs []string `json:"device_ids"`
}

// handleListGroups returns all groups.
//
//	@Summary		List groups
//	@Tags			groups
//	@Produce		json
//	@Success		200	{array}	models.Group
//	@Router			/groups/groups [get]
func (m *Module) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := m.store.List(r.Context())
	if err != nil {
		m.logger.Error("failed to list groups", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleGetGroup returns one group.
//
//	@Summary		Get group
//	@Tags			groups
//	@Produce		json
//	@Param			id	path		string	true	"Group ID"
//	@Success		200	{object}	models.Group
//	@Failure		404	{object}	server.Problem
//	@Router			/groups/groups/{id} [get]
func (m *Module) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := m.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleCreateGroup creates a group.
//
//	@Summary		Create group
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GroupCreateRequest	true	"Group to create"
//	@Success		201		{object}	models.Group
//	@Failure		400		{object}	server.Problem
//	@Router			/groups/groups [post]
func (m *Module) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := m.store.Create(r.Context(), CreateParams{
		Name:       req.Name,
		StreamURL:  req.StreamURL,
		MusicFiles: req.MusicFiles,
	})
	if err != nil {
		m.logger.Error("failed to create group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	m.publishChanged(r.Context())

	g, err := m.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load created group")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// handleUpdateGroup applies a partial update.
//
//	@Summary		Update group
//	@Description	Partial update. Absent keys are untouched, JSON null erases the field.
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Group ID"
//	@Param			request	body		GroupUpdateRequest	true	"Fields to change"
//	@Success		200		{object}	models.Group
//	@Failure		404		{object}	server.Problem
//	@Router			/groups/groups/{id} [patch]
func (m *Module) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req GroupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name.IsClear() {
		writeError(w, http.StatusBadRequest, "name cannot be cleared")
		return
	}
	if v, ok := req.Name.Value(); ok && v == "" {
		writeError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	err := m.store.Update(r.Context(), id, UpdateParams{
		Name:       req.Name,
		StreamURL:  req.StreamURL,
		MusicFiles: req.MusicFiles,
	})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to update group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}

	m.publishChanged(r.Context())

	g, err := m.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleDeleteGroup removes a group and detaches its members.
//
//	@Summary		Delete group
//	@Description	Removes the group and clears the assignment on every member device.
//	@Tags			groups
//	@Param			id	path	string	true	"Group ID"
//	@Success		204
//	@Router			/groups/groups/{id} [delete]
func (m *Module) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	removed, err := m.store.Delete(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to delete group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	if removed {
		if detached, err := m.detach(r.Context(), id); err != nil {
			m.logger.Error("failed to detach devices from deleted group",
				zap.String("group_id", id), zap.Error(err))
		} else if detached > 0 {
			m.logger.Info("devices detached from deleted group",
				zap.String("group_id", id), zap.Int("devices", detached))
			m.publishDevicesChanged(r.Context())
		}
		m.publishChanged(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignDevices moves devices into the group.
//
//	@Summary		Assign devices to group
//	@Description	Stops playing members, repoints them at the group stream, and restarts them after a settle delay.
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Group ID"
//	@Param			request	body		AssignRequest	true	"Device row IDs"
//	@Success		200		{object}	AssignReport
//	@Failure		404		{object}	server.Problem
//	@Router			/groups/groups/{id}/assign [post]
func (m *Module) handleAssignDevices(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.DeviceIDs) == 0 {
		writeError(w, http.StatusBadRequest, "device_ids is required")
		return
	}

	report, err := m.Assign(r.Context(), r.PathValue("id"), req.DeviceIDs)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		m.logger.Error("bulk assignment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "bulk assignment failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleSyncCounts reconciles stored device counts with the fleet.
//
//	@Summary		Sync group device counts
//	@Tags			groups
//	@Produce		json
//	@Success		200	{object}	SyncReport
//	@Router			/groups/sync [post]
func (m *Module) handleSyncCounts(w http.ResponseWriter, r *http.Request) {
	report, err := m.store.SyncCounts(r.Context(), m.counter, m.logger)
	if err != nil {
		m.logger.Error("group count sync failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "group count sync failed")
		return
	}
	if report.Updated > 0 {
		m.publishChanged(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}
