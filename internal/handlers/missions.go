package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/cache"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/export"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

const (
	defaultPageLimit = 20
	exportPageLimit  = 200
	maxExportRows    = 10000
)

// MissionHandler serves the dispatcher mission endpoints
type MissionHandler struct {
	missions *mission.Service
	overview *cache.Store[models.MissionOverview]
	loc      *time.Location
}

// NewMissionHandler creates a new mission handler. Dates in queries are read in loc.
func NewMissionHandler(missions *mission.Service, overview *cache.Store[models.MissionOverview], loc *time.Location) *MissionHandler {
	if loc == nil {
		loc = time.Local
	}
	return &MissionHandler{missions: missions, overview: overview, loc: loc}
}

// List returns one page of missions
func (h *MissionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r, "missions.List")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.missions.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Overview returns the number of missions per status
func (h *MissionHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.overview.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Create creates a mission
func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMissionRequest
	if err := decodeJSON(w, r, "missions.Create", &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Get returns one mission
func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "missions.Get", "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Update applies a dispatcher edit to a mission
func (h *MissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "missions.Update"
	id, err := pathID(r, op, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateMissionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.missions.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Export downloads every mission matching the list filters as a workbook
func (h *MissionHandler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "missions.Export"
	filter, err := h.parseFilter(r, op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var all []models.Mission
	filter.Limit = exportPageLimit
	for filter.Page = 1; len(all) < maxExportRows; filter.Page++ {
		page, err := h.missions.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		all = append(all, page.Missions...)
		if len(page.Missions) < filter.Limit || int64(len(all)) >= page.Total {
			break
		}
	}

	buf, err := export.MissionsWorkbook(all, h.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAttachment(w, fmt.Sprintf("missions_%s.xlsx", time.Now().In(h.loc).Format(compliance.DateLayout)), buf.Bytes())
}

// parseFilter reads status (comma separated), driver_id, car_id, from, to
// (inclusive YYYY-MM-DD days), search, sort, order, page and limit.
func (h *MissionHandler) parseFilter(r *http.Request, op string) (models.MissionFilter, error) {
	q := r.URL.Query()
	filter := models.MissionFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		SortBy:   q.Get("sort"),
		SortDesc: strings.EqualFold(q.Get("order"), "desc"),
	}

	for _, s := range strings.Split(q.Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			filter.Statuses = append(filter.Statuses, models.MissionStatus(s))
		}
	}

	var err error
	if filter.DriverID, err = queryID(r, op, "driver_id"); err != nil {
		return filter, err
	}
	if filter.CarID, err = queryID(r, op, "car_id"); err != nil {
		return filter, err
	}

	from, err := compliance.ParseDate(q.Get("from"), h.loc)
	if err != nil {
		return filter, err
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := compliance.ParseDate(q.Get("to"), h.loc)
	if err != nil {
		return filter, err
	}
	if !to.IsZero() {
		_, end := compliance.DayBounds(to, h.loc)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, apperrors.Validation(op, "from must not be after to")
	}

	if filter.Page, err = queryInt(r, op, "page", 1); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, op, "limit", defaultPageLimit); err != nil {
		return filter, err
	}
	return filter, nil
}

func writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
