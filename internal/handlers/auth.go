package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/accounts"
	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// AuthHandler handles authentication of dispatchers and drivers
type AuthHandler struct {
	authService *auth.Service
	accounts    *accounts.Service
	users       db.UserCollection
	drivers     db.DriverCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, accountService *accounts.Service, users db.UserCollection, drivers db.DriverCollection) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		accounts:    accountService,
		users:       users,
		drivers:     drivers,
	}
}

// Login handles dispatcher login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "auth.Login"

	var req models.LoginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	if errors.Is(err, db.ErrNotFound) {
		writeInvalidCredentials(w)
		return
	}
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}

	// same answer for unknown user and wrong password
	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		writeInvalidCredentials(w)
		return
	}
	if !user.IsActive {
		writeError(w, r, apperrors.Unauthorized(op, auth.ErrUserInactive.Error()))
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// DriverLogin handles driver login from the mobile app
func (h *AuthHandler) DriverLogin(w http.ResponseWriter, r *http.Request) {
	const op = "auth.DriverLogin"

	var req models.DriverLoginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	driver, err := h.drivers.FindDriverByPhone(r.Context(), req.Phone)
	if errors.Is(err, db.ErrNotFound) {
		writeInvalidCredentials(w)
		return
	}
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	if !h.authService.CheckPassword(req.Password, driver.PasswordHash) {
		writeInvalidCredentials(w)
		return
	}
	if !driver.IsActive {
		writeError(w, r, apperrors.Unauthorized(op, auth.ErrUserInactive.Error()))
		return
	}

	token, err := h.authService.GenerateDriverToken(driver)
	if err != nil {
		writeError(w, r, err)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		Driver:       driver,
	})
}

// CreateUser creates a dispatcher account
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	const op = "auth.CreateUser"

	var req models.RegisterRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.accounts.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetProfile returns the current dispatcher's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "auth.GetProfile"

	user, err := h.currentUser(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile updates the current dispatcher's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "auth.UpdateProfile"

	var req struct {
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
		Email     string `json:"email" validate:"omitempty,email"`
	}
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.currentUser(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" && req.Email != user.Email {
		existing, err := h.users.FindUserByEmail(r.Context(), req.Email)
		switch {
		case err == nil && existing.ID != user.ID:
			writeError(w, r, apperrors.Validation(op, "email already exists"))
			return
		case err != nil && !errors.Is(err, db.ErrNotFound):
			writeError(w, r, apperrors.Upstream(op, err))
			return
		}
		user.Email = req.Email
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword changes the current dispatcher's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "auth.ChangePassword"

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.currentUser(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, r, apperrors.Unauthorized(op, "current password is incorrect"))
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user.PasswordHash = hash
	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *AuthHandler) currentUser(r *http.Request, op string) (*models.User, error) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok || claims.IsDriver() {
		return nil, apperrors.Unauthorized(op, "dispatcher token required")
	}
	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperrors.NotFound(op, "user not found")
	}
	if err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	return user, nil
}

// writeInvalidCredentials answers 401 for unknown accounts and wrong passwords
func writeInvalidCredentials(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.ErrInvalidCredentials.Error()})
}
