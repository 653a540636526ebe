package http

import (
	"net/http"

	"github.com/fluxoclean/controlplane/internal/account"
	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/go-chi/chi/v5"
)

var errRegistrationRetired = apperr.New(apperr.KindValidation, "direct registration was retired, use pre-registration")

// ExchangeCodeRequest carries a one-time code.
type ExchangeCodeRequest struct {
	Code string `json:"code" example:"q3Jx..."`
}

// ExchangeCode redeems a one-time code for a bearer token
// @Summary Exchange Code
// @Description Redeem a single-use code handed to a product front-end
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ExchangeCodeRequest true "Code"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/auth/exchange-code [post]
func (h *Handler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req ExchangeCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	tok, err := h.accounts.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// PreRegisterRequest is the sign-up form.
type PreRegisterRequest struct {
	CompanyName string `json:"companyName" example:"Acme Limpeza"`
	Document    string `json:"document" example:"12.345.678/0001-90"`
	Email       string `json:"email" example:"owner@acme.io"`
	SystemType  string `json:"systemType" example:"commerce"`
}

// PreRegister handles the sign-up form
// @Summary Pre-register
// @Description Record a pending tenant and email the completion link
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body PreRegisterRequest true "Company Data"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/auth/pre-register [post]
func (h *Handler) PreRegister(w http.ResponseWriter, r *http.Request) {
	var req PreRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	err := h.accounts.PreRegister(r.Context(), account.PreRegistration{
		CompanyName: req.CompanyName,
		Document:    req.Document,
		Email:       req.Email,
		SystemType:  tenant.SystemType(req.SystemType),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "pre-registration received, check your email to set a password",
	})
}

// RegistrationTokenRequest carries a registration link token.
type RegistrationTokenRequest struct {
	Token string `json:"token"`
}

// ValidateRegistration returns what a registration link refers to.
func (h *Handler) ValidateRegistration(w http.ResponseWriter, r *http.Request) {
	var req RegistrationTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	preview, err := h.accounts.ValidateRegistration(r.Context(), req.Token)
	if err != nil {
		respondJSON(w, statusFor(apperr.KindOf(err)), map[string]any{
			"valid": false,
			"error": apperr.MessageOf(err),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"valid": true, "data": preview})
}

// CompleteRegistrationRequest sets the owner's name and password.
type CompleteRegistrationRequest struct {
	Token    string `json:"token"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// CompleteRegistration activates a pending tenant
// @Summary Complete Registration
// @Description Create the owner, start the trial and sign the owner in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body CompleteRegistrationRequest true "Owner Data"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]string
// @Router /api/auth/complete-registration [post]
func (h *Handler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req CompleteRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	sess, err := h.accounts.CompleteRegistration(r.Context(), req.Token, req.UserName, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	resp := newSessionResponse(sess)
	resp.Message = "account activated"
	respondJSON(w, http.StatusCreated, resp)
}

// Register is the retired direct sign-up endpoint.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusGone, errRegistrationRetired.Message)
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"owner@acme.io"`
	Password string `json:"password" example:"Secure#Pass1"`
}

// SessionUser is the signed-in user as shown to front-ends.
type SessionUser struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SessionTenant is the signed-in user's tenant as shown to front-ends.
type SessionTenant struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	Status     tenant.Status     `json:"status"`
	SystemType tenant.SystemType `json:"system"`
}

// SessionResponse is returned by login and registration completion.
type SessionResponse struct {
	Message     string         `json:"message,omitempty"`
	Token       string         `json:"token"`
	Code        string         `json:"code"`
	RedirectURL string         `json:"redirectUrl"`
	User        SessionUser    `json:"user"`
	Tenant      *SessionTenant `json:"tenant,omitempty"`
}

func newSessionResponse(s *account.Session) SessionResponse {
	resp := SessionResponse{
		Token:       s.Token,
		Code:        s.Code,
		RedirectURL: s.RedirectURL,
		User:        SessionUser{Name: s.Name, Email: s.Email, Role: string(identity.RoleSuperadmin)},
	}
	if s.User != nil {
		resp.User.ID = s.User.ID
		resp.User.Role = string(s.User.Role)
	}
	if s.Tenant != nil {
		resp.Tenant = &SessionTenant{
			ID:         s.Tenant.ID,
			Name:       s.Tenant.Name,
			Slug:       s.Tenant.Slug,
			Status:     s.Tenant.Status,
			SystemType: s.Tenant.SystemType,
		}
	}
	return resp
}

// Login handles user login
// @Summary Login
// @Description Authenticate the platform operator or a tenant user
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 423 {object} map[string]string
// @Router /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// ForgotPasswordRequest asks for a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword emails a password reset link.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "if the email is registered, a recovery link was sent")
}

// ValidateResetToken reports whether a reset link is still usable.
func (h *Handler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.ValidateResetToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "token is valid")
}

// ResetPasswordRequest sets a new password through a reset link.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword sets a new password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "password changed")
}
