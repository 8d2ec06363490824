package mission

import (
	"strings"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// DefaultCheckItems are the daily check items evaluated when none are configured.
var DefaultCheckItems = []string{
	"tires",
	"lights",
	"brakes",
	"mirrors",
	"wipers",
	"horn",
	"fluidLevels",
	"seatBelts",
	"fireExtinguisher",
	"firstAidKit",
	"warningTriangle",
	"documents",
}

// ReportStatus classifies a daily check. Only an explicit false on a configured
// item fails it; items the driver did not answer are ignored.
func ReportStatus(meta models.InspectionMetadata, items []string) models.InspectionStatus {
	for _, item := range items {
		if ok, answered := meta.Checks[item]; answered && !ok {
			return models.InspectionBad
		}
	}
	if strings.TrimSpace(meta.PaintAndBody) != "" || strings.TrimSpace(meta.EventsObligatingReporting) != "" {
		return models.InspectionBad
	}
	return models.InspectionGood
}

// ParseCheckItems splits a comma separated item list, falling back to
// DefaultCheckItems when it is empty.
func ParseCheckItems(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), DefaultCheckItems...)
	}
	return items
}
