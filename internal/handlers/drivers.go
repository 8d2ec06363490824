package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-dispatch/internal/accounts"
	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// DriverHandler serves driver management for dispatchers
type DriverHandler struct {
	drivers  db.DriverCollection
	accounts *accounts.Service
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(drivers db.DriverCollection, accountService *accounts.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, accounts: accountService}
}

// List returns drivers, only active ones with ?active=true
func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.drivers.FindDrivers(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, r, apperrors.Upstream("drivers.List", err))
		return
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

// Create onboards a driver
func (h *DriverHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDriverRequest
	if err := decodeJSON(w, r, "drivers.Create", &req); err != nil {
		writeError(w, r, err)
		return
	}
	driver, err := h.accounts.CreateDriver(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, driver)
}
