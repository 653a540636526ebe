package http

import (
	"net/http"

	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/go-chi/chi/v5"
)

// SubUserRequest carries the fields an owner sets on a sub-user.
type SubUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role" example:"technician"`
}

func (req SubUserRequest) input() identity.SubUserInput {
	return identity.SubUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     identity.Role(req.Role),
	}
}

// ListSubUsers lists the users of the owner's tenant.
func (h *Handler) ListSubUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// CreateSubUser adds a user to the owner's tenant
// @Summary Create Sub-user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubUserRequest true "User Data"
// @Success 201 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/auth/sub-users [post]
func (h *Handler) CreateSubUser(w http.ResponseWriter, r *http.Request) {
	var req SubUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	user, err := h.users.CreateSubUser(ctx, GetUserID(ctx), GetTenantID(ctx), req.input())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// UpdateSubUser changes a sub-user of the owner's tenant.
func (h *Handler) UpdateSubUser(w http.ResponseWriter, r *http.Request) {
	var req SubUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	user, err := h.users.UpdateSubUser(ctx, GetUserID(ctx), GetTenantID(ctx), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteSubUser removes a sub-user of the owner's tenant.
func (h *Handler) DeleteSubUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.users.DeleteSubUser(ctx, GetUserID(ctx), GetTenantID(ctx), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "user removed")
}
