package mission

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// NewMission builds a mission from a dispatcher request. It starts waiting when
// a driver or a car is supplied and unassigned otherwise.
func NewMission(req models.CreateMissionRequest, now time.Time) models.Mission {
	m := models.Mission{
		Reference:    strings.TrimSpace(req.Reference),
		ClientName:   strings.TrimSpace(req.ClientName),
		Address:      strings.TrimSpace(req.Address),
		Notes:        req.Notes,
		DriverID:     req.DriverID,
		CarID:        req.CarID,
		DateExpected: req.DateExpected,
		Metadata:     models.MissionMetadata{Version: models.MetadataVersion},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.Status = models.MissionUnassigned
	syncAssignment(&m)
	return m
}

// Assign attaches or detaches a driver and a car. A nil or zero id clears it.
func Assign(m *models.Mission, driverID, carID *int64, now time.Time) error {
	const op = "mission.Assign"
	if m.Status.Terminal() {
		return apperrors.Validation(op, "a completed mission cannot be reassigned")
	}
	m.DriverID = normalizeRef(driverID)
	m.CarID = normalizeRef(carID)
	syncAssignment(m)
	m.UpdatedAt = now
	return nil
}

// Start moves a waiting mission of the requesting driver to in_progress.
func Start(m *models.Mission, requester models.DriverSession, now time.Time) error {
	const op = "mission.Start"
	if !m.OwnedBy(requester.DriverID) {
		return apperrors.Unauthorized(op, "mission is not assigned to this driver")
	}
	switch m.Status {
	case models.MissionInProgress:
		return nil
	case models.MissionWaiting, models.MissionProblem:
		m.Status = models.MissionInProgress
		m.UpdatedAt = now
		return nil
	default:
		return apperrors.Validation(op, "mission cannot be started from status "+string(m.Status))
	}
}

// Complete closes a mission on behalf of the driver that owns it.
// Completing an already completed mission is accepted so the app can retry:
// completed_at keeps its first value and the images are replaced.
func Complete(m *models.Mission, requester models.DriverSession, req models.CompletionRequest, now time.Time) error {
	const op = "mission.Complete"
	if req.DriverID != requester.DriverID {
		return apperrors.Validation(op, "driver_id does not match the authenticated driver")
	}
	if req.CarID != nil && *req.CarID <= 0 {
		return apperrors.Validation(op, "car_id must be a positive number")
	}
	if !m.OwnedBy(requester.DriverID) {
		return apperrors.Unauthorized(op, "mission is not assigned to this driver")
	}

	m.Metadata.Version = models.MetadataVersion
	m.Metadata.Completion = &models.CompletionDetails{
		CertificateImages: orEmpty(req.CertificateImages),
		PackageImages:     orEmpty(req.PackageImages),
	}
	if req.CarID != nil {
		carID := *req.CarID
		m.CarID = &carID
	}
	m.Status = models.MissionCompleted
	if m.CompletedAt == nil {
		completedAt := now
		m.CompletedAt = &completedAt
	}
	m.UpdatedAt = now
	return nil
}

// Fail marks a mission of the requesting driver as problem and records why.
// A mission already in problem may be reported again; the new report replaces
// the previous one except for reported_to when it is not supplied.
func Fail(m *models.Mission, requester models.DriverSession, req models.FailureRequest, now time.Time) error {
	const op = "mission.Fail"
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return apperrors.Validation(op, "reason is required")
	}
	carID, ok := numericID(req.CarID)
	if !ok {
		return apperrors.Validation(op, "car_id must be a number")
	}
	if req.Location != nil && !req.Location.Valid() {
		return apperrors.Validation(op, "failure_location is out of range")
	}
	if !m.OwnedBy(requester.DriverID) {
		return apperrors.Unauthorized(op, "mission is not assigned to this driver")
	}
	if m.Status.Terminal() {
		return apperrors.Validation(op, "a completed mission cannot be reported as failed")
	}

	failure := &models.FailureDetails{
		Images:     orEmpty(req.Images),
		Location:   req.Location,
		Reason:     reason,
		Reported:   req.Reported != nil && *req.Reported,
		ReportedTo: req.ReportedTo,
		DateFailed: now,
	}
	if failure.ReportedTo == nil && m.Metadata.Failure != nil {
		failure.ReportedTo = m.Metadata.Failure.ReportedTo
	}
	m.Metadata.Version = models.MetadataVersion
	m.Metadata.Failure = failure
	m.CarID = &carID
	m.Status = models.MissionProblem
	m.UpdatedAt = now
	return nil
}

// Update applies a dispatcher edit. Descriptive fields may change on any
// mission; assignment and status may not change once it is completed.
func Update(m *models.Mission, req models.UpdateMissionRequest, now time.Time) error {
	const op = "mission.Update"
	if req.Status != nil && !req.Status.Valid() {
		return apperrors.Validation(op, "unknown status "+string(*req.Status))
	}
	if m.Status.Terminal() {
		if req.DriverID != nil || req.CarID != nil {
			return apperrors.Validation(op, "a completed mission cannot be reassigned")
		}
		if req.Status != nil && *req.Status != models.MissionCompleted {
			return apperrors.Validation(op, "a completed mission cannot change status")
		}
	}

	next := *m
	if req.DriverID != nil {
		next.DriverID = normalizeRef(req.DriverID)
	}
	if req.CarID != nil {
		next.CarID = normalizeRef(req.CarID)
	}

	if req.Status != nil && *req.Status != m.Status {
		if err := setStatus(&next, *req.Status, req.FailureReason, now); err != nil {
			return err
		}
	} else {
		syncAssignment(&next)
	}

	if req.Reference != nil {
		ref := strings.TrimSpace(*req.Reference)
		if ref == "" {
			return apperrors.Validation(op, "reference cannot be empty")
		}
		next.Reference = ref
	}
	if req.Address != nil {
		addr := strings.TrimSpace(*req.Address)
		if addr == "" {
			return apperrors.Validation(op, "address cannot be empty")
		}
		next.Address = addr
	}
	if req.ClientName != nil {
		next.ClientName = strings.TrimSpace(*req.ClientName)
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if req.DateExpected != nil {
		next.DateExpected = *req.DateExpected
	}
	next.UpdatedAt = now
	*m = next
	return nil
}

func setStatus(m *models.Mission, status models.MissionStatus, failureReason *string, now time.Time) error {
	const op = "mission.Update"
	switch status {
	case models.MissionUnassigned:
		m.DriverID, m.CarID = nil, nil
	case models.MissionCompleted:
		if !m.Assigned() {
			return apperrors.Validation(op, "an unassigned mission cannot be completed")
		}
		completedAt := now
		m.CompletedAt = &completedAt
	case models.MissionProblem:
		if !m.Assigned() {
			return apperrors.Validation(op, "an unassigned mission cannot be marked as problem")
		}
		reason := ""
		if failureReason != nil {
			reason = strings.TrimSpace(*failureReason)
		}
		failure := models.FailureDetails{}
		if m.Metadata.Failure != nil {
			failure = *m.Metadata.Failure
		}
		if reason == "" {
			reason = failure.Reason
		}
		if reason == "" {
			return apperrors.Validation(op, "failure_reason is required")
		}
		failure.Reason = reason
		failure.Images = orEmpty(failure.Images)
		failure.DateFailed = now
		m.Metadata.Version = models.MetadataVersion
		m.Metadata.Failure = &failure
	default:
		if !m.Assigned() {
			return apperrors.Validation(op, "assign a driver or a car first")
		}
	}
	m.Status = status
	return nil
}

// syncAssignment keeps status and assignment consistent: no driver and no car
// means unassigned, and an assigned mission is never unassigned.
func syncAssignment(m *models.Mission) {
	switch {
	case !m.Assigned():
		m.Status = models.MissionUnassigned
	case m.Status == models.MissionUnassigned:
		m.Status = models.MissionWaiting
	}
}

func normalizeRef(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

// numericID accepts the decoded JSON forms of a whole positive number.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n <= 0 || n != math.Trunc(n) || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil && id > 0
	case int64:
		return n, n > 0
	case int:
		return int64(n), n > 0
	default:
		return 0, false
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
