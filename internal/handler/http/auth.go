package http

import (
	"log/slog"
	"net/http"

	"github.com/quick-fold/quickfold-customer-app/internal/auth"
	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/service"
	"github.com/quick-fold/quickfold-customer-app/pkg/httputil"
	"github.com/quick-fold/quickfold-customer-app/pkg/middleware"
	"github.com/quick-fold/quickfold-customer-app/pkg/validator"
)

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	FirstName      string `json:"firstName" validate:"notblank,max=50"`
	LastName       string `json:"lastName" validate:"notblank,max=50"`
	Email          string `json:"email" validate:"required,email,max=100"`
	Password       string `json:"password" validate:"required,min=6,bcryptmax"`
	Phone          string `json:"phone" validate:"required,max=20,phone"`
	AddressStreet  string `json:"addressStreet" validate:"max=255"`
	AddressCity    string `json:"addressCity" validate:"max=100"`
	AddressState   string `json:"addressState" validate:"max=100"`
	AddressZipCode string `json:"addressZipCode" validate:"max=20"`
	AddressCountry string `json:"addressCountry" validate:"max=100"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,bcryptmax"`
}

// UpdateProfileRequest is the JSON request body for a profile update.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName      *string `json:"firstName" validate:"omitnil,notblank,max=50"`
	LastName       *string `json:"lastName" validate:"omitnil,notblank,max=50"`
	Phone          *string `json:"phone" validate:"omitnil,max=20,phone"`
	AddressStreet  *string `json:"addressStreet" validate:"omitnil,max=255"`
	AddressCity    *string `json:"addressCity" validate:"omitnil,max=100"`
	AddressState   *string `json:"addressState" validate:"omitnil,max=100"`
	AddressZipCode *string `json:"addressZipCode" validate:"omitnil,max=20"`
	AddressCountry *string `json:"addressCountry" validate:"omitnil,max=100"`
}

// --- Response types ---

// UserResponse wraps a single user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// TokenResponse carries a replacement session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Address: domain.Address{
			Street:  req.AddressStreet,
			City:    req.AddressCity,
			State:   req.AddressState,
			ZipCode: req.AddressZipCode,
			Country: req.AddressCountry,
		},
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, res)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	c := middleware.ClaimsFromContext(r.Context())
	claims := &auth.Claims{
		UserID:    c.UserID,
		Role:      c.Role,
		TokenID:   c.TokenID,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}

	if err := h.service.Logout(r.Context(), claims); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetProfile(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, UserResponse{User: user})
}

// UpdateMe handles PUT /api/v1/auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	input := service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}
	if req.hasAddress() {
		current, err := h.service.GetProfile(r.Context(), userID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		addr := domain.Address{
			Street:  current.AddressStreet,
			City:    current.AddressCity,
			State:   current.AddressState,
			ZipCode: current.AddressZipCode,
			Country: current.AddressCountry,
		}
		overlay(&addr.Street, req.AddressStreet)
		overlay(&addr.City, req.AddressCity)
		overlay(&addr.State, req.AddressState)
		overlay(&addr.ZipCode, req.AddressZipCode)
		overlay(&addr.Country, req.AddressCountry)
		input.Address = &addr
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, UserResponse{User: user})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.ChangePassword(r.Context(), middleware.UserIDFromContext(r.Context()),
		req.CurrentPassword, req.NewPassword)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if !res.Changed {
		httputil.WriteMessage(w, http.StatusOK, "Password unchanged")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Success: true,
		Message: "Password updated successfully",
		Data:    TokenResponse{Token: res.Token},
	})
}

func (req UpdateProfileRequest) hasAddress() bool {
	return req.AddressStreet != nil || req.AddressCity != nil || req.AddressState != nil ||
		req.AddressZipCode != nil || req.AddressCountry != nil
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
