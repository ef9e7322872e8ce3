package directory

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

// UserCreateRequest is the request body for POST /users.
type UserCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// UserUpdateRequest is the request body for PATCH /users/{id}.
type UserUpdateRequest struct {
	Name     patch.Field[string] `json:"name"`
	Email    patch.Field[string] `json:"email"`
	Role     patch.Field[string] `json:"role"`
	DeviceID patch.Field[string] `json:"device_id"`
}

// handleListUsers returns every user from both storage locations.
//
//	@Summary		List users
//	@Description	Union of both storage locations. Accounts present in both appear twice.
//	@Tags			directory
//	@Produce		json
//	@Success		200	{array}	models.User
//	@Router			/directory/users [get]
func (m *Module) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := m.federation.List(r.Context())
	if err != nil {
		m.logger.Error("failed to list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// handleLookupUser finds a user by email address.
//
//	@Summary		Look up user by email
//	@Description	Case-insensitive, whitespace-tolerant. Checks the current location first.
//	@Tags			directory
//	@Produce		json
//	@Param			email	query		string	true	"Email address"
//	@Success		200		{object}	models.User
//	@Failure		404		{object}	server.Problem
//	@Router			/directory/users/lookup [get]
func (m *Module) handleLookupUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	u, err := m.federation.LookupByEmail(r.Context(), email)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to look up user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleGetUser returns one user by ID.
//
//	@Summary		Get user
//	@Tags			directory
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	models.User
//	@Failure		404	{object}	server.Problem
//	@Router			/directory/users/{id} [get]
func (m *Module) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := m.federation.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleCreateUser creates a user in the current storage location.
//
//	@Summary		Create user
//	@Tags			directory
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UserCreateRequest	true	"User to create"
//	@Success		201		{object}	models.User
//	@Failure		400		{object}	server.Problem
//	@Router			/directory/users [post]
func (m *Module) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if NormalizeEmail(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role != "" && req.Role != string(models.RoleAdmin) && req.Role != string(models.RoleUser) {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	u := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Role:     models.UserRole(req.Role),
		DeviceID: req.DeviceID,
	}
	if err := m.federation.Create(r.Context(), u); err != nil {
		m.logger.Error("failed to create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	m.publishChanged(r.Context())
	writeJSON(w, http.StatusCreated, u)
}

// handleUpdateUser applies a partial update wherever the record lives.
//
//	@Summary		Update user
//	@Tags			directory
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"User ID"
//	@Param			request	body		UserUpdateRequest	true	"Fields to change"
//	@Success		200		{object}	models.User
//	@Failure		404		{object}	server.Problem
//	@Router			/directory/users/{id} [patch]
func (m *Module) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email.IsClear() {
		writeError(w, http.StatusBadRequest, "email cannot be cleared")
		return
	}
	if v, ok := req.Role.Value(); ok &&
		v != string(models.RoleAdmin) && v != string(models.RoleUser) {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	err := m.federation.Update(r.Context(), id, UpdateParams{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		DeviceID: req.DeviceID,
	})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to update user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	m.publishChanged(r.Context())

	u, err := m.federation.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleDeleteUser removes a user. Admin accounts are refused.
//
//	@Summary		Delete user
//	@Tags			directory
//	@Param			id	path	string	true	"User ID"
//	@Success		204
//	@Failure		403	{object}	server.Problem
//	@Failure		404	{object}	server.Problem
//	@Router			/directory/users/{id} [delete]
func (m *Module) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	err := m.federation.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrAdminUndeletable) {
		writeError(w, http.StatusForbidden, "admin accounts cannot be deleted")
		return
	}
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to delete user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	m.publishChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
