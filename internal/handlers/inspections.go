package handlers

import (
	"net/http"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

const defaultInspectionLimit = 100

// InspectionHandler serves daily vehicle checks
type InspectionHandler struct {
	inspections db.InspectionCollection
	evaluator   *compliance.Evaluator
	checkItems  []string
	now         func() time.Time
}

// NewInspectionHandler creates a new inspection handler. checkItems are the
// items that fail a check when answered false.
func NewInspectionHandler(inspections db.InspectionCollection, evaluator *compliance.Evaluator, checkItems []string) *InspectionHandler {
	if len(checkItems) == 0 {
		checkItems = mission.DefaultCheckItems
	}
	return &InspectionHandler{
		inspections: inspections,
		evaluator:   evaluator,
		checkItems:  checkItems,
		now:         time.Now,
	}
}

// Submit stores the daily check of the authenticated driver. The status is
// computed here once and never recomputed on read.
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	const op = "inspections.Submit"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req models.InspectionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Metadata.VehicleNumber == "" {
		writeError(w, r, apperrors.Validation(op, "vehicleNumber is required"))
		return
	}
	if req.Metadata.Mileage != nil && *req.Metadata.Mileage < 0 {
		writeError(w, r, apperrors.Validation(op, "mileage must not be negative"))
		return
	}

	req.Metadata.Status = mission.ReportStatus(req.Metadata, h.checkItems)
	req.Metadata.Version = models.MetadataVersion
	inspection := &models.VehicleInspection{
		DriverID:  session.DriverID,
		CarID:     req.CarID,
		CreatedAt: h.now().UTC(),
		Metadata:  req.Metadata,
	}
	if err := h.inspections.InsertInspection(r.Context(), inspection); err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}

	metrics.InspectionsTotal.WithLabelValues(string(inspection.Metadata.Status)).Inc()
	writeJSON(w, http.StatusCreated, inspection)
}

// Today reports whether the authenticated driver completed today's check
func (h *InspectionHandler) Today(w http.ResponseWriter, r *http.Request) {
	const op = "inspections.Today"
	session, err := driverSession(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary := h.evaluator.Evaluate(r.Context(), time.Time{}, []int64{session.DriverID})
	if len(summary.Drivers) == 0 {
		writeError(w, r, apperrors.Upstream(op, errLookupFailed))
		return
	}
	writeJSON(w, http.StatusOK, summary.Drivers[0])
}

// List returns inspections filtered by driver_id and the from/to days
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "inspections.List"
	loc := h.evaluator.Location()
	q := r.URL.Query()

	var filter models.InspectionFilter
	var err error
	if filter.DriverID, err = queryID(r, op, "driver_id"); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := compliance.ParseDate(q.Get("from"), loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := compliance.ParseDate(q.Get("to"), loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !to.IsZero() {
		_, end := compliance.DayBounds(to, loc)
		filter.To = &end
	}
	if filter.Limit, err = queryInt(r, op, "limit", defaultInspectionLimit); err != nil {
		writeError(w, r, err)
		return
	}

	inspections, err := h.inspections.FindInspections(r.Context(), filter)
	if err != nil {
		writeError(w, r, apperrors.Upstream(op, err))
		return
	}
	if inspections == nil {
		inspections = []models.VehicleInspection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}
