// Package accounts creates dispatcher and driver accounts.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Service checks uniqueness, hashes passwords and stores new accounts.
type Service struct {
	auth    *auth.Service
	users   db.UserCollection
	drivers db.DriverCollection
}

// NewService creates an account service.
func NewService(authService *auth.Service, users db.UserCollection, drivers db.DriverCollection) *Service {
	return &Service{auth: authService, users: users, drivers: drivers}
}

// CreateUser stores a new active dispatcher account.
func (s *Service) CreateUser(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	const op = "accounts.CreateUser"

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !models.IsValidRole(req.Role) {
		return nil, apperrors.Validation(op, "invalid role")
	}

	if err := absent(op, "username already exists", func() error {
		_, err := s.users.FindUserByUsername(ctx, req.Username)
		return err
	}); err != nil {
		return nil, err
	}
	if err := absent(op, "email already exists", func() error {
		_, err := s.users.FindUserByEmail(ctx, req.Email)
		return err
	}); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	return user, nil
}

// CreateDriver stores a new active driver that logs in with phone and password.
func (s *Service) CreateDriver(ctx context.Context, req models.CreateDriverRequest) (*models.Driver, error) {
	const op = "accounts.CreateDriver"

	req.Phone = strings.TrimSpace(req.Phone)
	if err := absent(op, "phone already registered", func() error {
		_, err := s.drivers.FindDriverByPhone(ctx, req.Phone)
		return err
	}); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	driver := &models.Driver{
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.drivers.InsertDriver(ctx, driver); err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	return driver, nil
}

// absent succeeds only when lookup reports db.ErrNotFound.
func absent(op, conflict string, lookup func() error) error {
	err := lookup()
	switch {
	case err == nil:
		return apperrors.Validation(op, conflict)
	case errors.Is(err, db.ErrNotFound):
		return nil
	default:
		return apperrors.Upstream(op, err)
	}
}
