package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/export"
)

var errLookupFailed = errors.New("daily check lookup failed")

// ComplianceHandler serves the daily check compliance dashboard
type ComplianceHandler struct {
	evaluator *compliance.Evaluator
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(evaluator *compliance.Evaluator) *ComplianceHandler {
	return &ComplianceHandler{evaluator: evaluator}
}

// Daily evaluates every active driver for ?date=YYYY-MM-DD (today by default)
func (h *ComplianceHandler) Daily(w http.ResponseWriter, r *http.Request) {
	summary, err := h.evaluate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Export downloads the daily compliance as a workbook
func (h *ComplianceHandler) Export(w http.ResponseWriter, r *http.Request) {
	summary, err := h.evaluate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	buf, err := export.ComplianceWorkbook(summary, h.evaluator.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAttachment(w, fmt.Sprintf("compliance_%s.xlsx", summary.Date), buf.Bytes())
}

func (h *ComplianceHandler) evaluate(r *http.Request) (compliance.Summary, error) {
	date, err := compliance.ParseDate(r.URL.Query().Get("date"), h.evaluator.Location())
	if err != nil {
		return compliance.Summary{}, err
	}
	return h.evaluator.EvaluateActive(r.Context(), date)
}
