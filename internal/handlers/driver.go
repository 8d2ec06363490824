package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// DriverAppHandler serves the endpoints of the driver mobile app
type DriverAppHandler struct {
	missions *mission.Service
	drivers  db.DriverCollection
	loc      *time.Location
	now      func() time.Time
}

// NewDriverAppHandler creates a new driver app handler
func NewDriverAppHandler(missions *mission.Service, drivers db.DriverCollection, loc *time.Location) *DriverAppHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DriverAppHandler{missions: missions, drivers: drivers, loc: loc, now: time.Now}
}

// Missions lists the open missions of the driver and the ones completed since
// the given day (?since=YYYY-MM-DD, today by default)
func (h *DriverAppHandler) Missions(w http.ResponseWriter, r *http.Request) {
	const op = "driver.Missions"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	since, err := compliance.ParseDate(r.URL.Query().Get("since"), h.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if since.IsZero() {
		since, _ = compliance.DayBounds(h.now(), h.loc)
	}

	missions, err := h.missions.ListForDriver(r.Context(), session, since)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": missions})
}

// Start marks a mission as in progress
func (h *DriverAppHandler) Start(w http.ResponseWriter, r *http.Request) {
	const op = "driver.Start"
	session, id, err := h.target(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Start(r.Context(), session, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Complete closes a mission with its delivery photos
func (h *DriverAppHandler) Complete(w http.ResponseWriter, r *http.Request) {
	const op = "driver.Complete"
	session, id, err := h.target(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.CompletionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Complete(r.Context(), session, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Fail reports a delivery problem
func (h *DriverAppHandler) Fail(w http.ResponseWriter, r *http.Request) {
	const op = "driver.Fail"
	session, id, err := h.target(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.FailureRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Fail(r.Context(), session, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateFCMToken registers the push token of the driver's device
func (h *DriverAppHandler) UpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	const op = "driver.UpdateFCMToken"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateFCMTokenRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err = h.drivers.UpdateDriverFCMToken(r.Context(), session.DriverID, req.Token)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, apperrors.NotFound(op, "driver not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriverAppHandler) target(r *http.Request, op string) (models.DriverSession, int64, error) {
	session, err := driverSession(r, op)
	if err != nil {
		return session, 0, err
	}
	id, err := pathID(r, op, "id")
	return session, id, err
}

func driverSession(r *http.Request, op string) (models.DriverSession, error) {
	session, ok := middleware.GetDriverSession(r.Context())
	if !ok {
		return session, apperrors.Unauthorized(op, "driver session required")
	}
	return session, nil
}
