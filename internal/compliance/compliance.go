package compliance

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
)

const (
	// DateLayout is the calendar date format accepted and returned by the evaluator.
	DateLayout = "2006-01-02"

	defaultConcurrency = 8
)

// CheckSummary describes the latest daily check of a driver on the evaluated day.
type CheckSummary struct {
	ID            int64     `json:"id"`
	CompletedAt   time.Time `json:"completedAt"`
	VehicleNumber *string   `json:"vehicleNumber"`
	Status        *string   `json:"status"`
}

// DriverResult is the compliance of one driver.
type DriverResult struct {
	DriverID                int64         `json:"driverId"`
	DriverName              string        `json:"driverName,omitempty"`
	HasCompletedTodaysCheck bool          `json:"hasCompletedTodaysCheck"`
	LatestCheck             *CheckSummary `json:"latestCheck"`
}

// Summary is the outcome of a daily compliance evaluation. Drivers whose lookup
// failed are counted in Failed and left out of every other field.
type Summary struct {
	Date           string         `json:"date"`
	Drivers        []DriverResult `json:"drivers"`
	Completed      int            `json:"completed"`
	Pending        int            `json:"pending"`
	Total          int            `json:"total"`
	Failed         int            `json:"failed"`
	CompletionRate int            `json:"completionRate"`
}

// Evaluator computes which drivers completed their daily check on a given day.
type Evaluator struct {
	inspections db.InspectionCollection
	drivers     db.DriverCollection
	loc         *time.Location
	limit       int
	now         func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConcurrency bounds the number of lookups in flight.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator whose calendar days are taken in loc.
// A nil loc means time.Local.
func NewEvaluator(inspections db.InspectionCollection, drivers db.DriverCollection, loc *time.Location, opts ...Option) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	e := &Evaluator{
		inspections: inspections,
		drivers:     drivers,
		loc:         loc,
		limit:       defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the zone calendar days are computed in.
func (e *Evaluator) Location() *time.Location { return e.loc }

// DayBounds returns the half-open local calendar day [start, end) containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD date in loc. An empty string yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperrors.Validation("compliance.ParseDate", "date must be formatted as YYYY-MM-DD")
	}
	return t, nil
}

// Rate returns round(completed/total*100), or 0 when total is 0.
func Rate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Evaluate looks up the latest daily check of every driver on the day of date.
// A zero date means today. Lookups run concurrently and a failed lookup only
// removes that driver from the summary.
func (e *Evaluator) Evaluate(ctx context.Context, date time.Time, driverIDs []int64) Summary {
	if date.IsZero() {
		date = e.now()
	}
	start, end := DayBounds(date, e.loc)

	ids := dedupe(driverIDs)
	results := make([]*DriverResult, len(ids))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, id := range ids {
		g.Go(func() error {
			r, err := e.evaluateDriver(ctx, id, start, end)
			if err != nil {
				metrics.ComplianceLookupFailures.Inc()
				log.WithError(err).WithFields(log.Fields{
					"driver_id": id,
					"date":      start.Format(DateLayout),
				}).Warn("Daily check lookup failed")
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Date: start.Format(DateLayout), Drivers: make([]DriverResult, 0, len(ids))}
	for _, r := range results {
		if r == nil {
			summary.Failed++
			continue
		}
		summary.Drivers = append(summary.Drivers, *r)
		if r.HasCompletedTodaysCheck {
			summary.Completed++
		} else {
			summary.Pending++
		}
	}
	summary.Total = summary.Completed + summary.Pending
	summary.CompletionRate = Rate(summary.Completed, summary.Total)
	return summary
}

// EvaluateActive evaluates every active driver and attaches their names.
func (e *Evaluator) EvaluateActive(ctx context.Context, date time.Time) (Summary, error) {
	drivers, err := e.drivers.FindDrivers(ctx, true)
	if err != nil {
		return Summary{}, apperrors.Upstream("compliance.EvaluateActive", err)
	}
	ids := make([]int64, 0, len(drivers))
	names := make(map[int64]string, len(drivers))
	for _, d := range drivers {
		if !d.IsActive {
			continue
		}
		ids = append(ids, d.ID)
		names[d.ID] = d.Name
	}

	summary := e.Evaluate(ctx, date, ids)
	for i := range summary.Drivers {
		summary.Drivers[i].DriverName = names[summary.Drivers[i].DriverID]
	}
	return summary, nil
}

func (e *Evaluator) evaluateDriver(ctx context.Context, driverID int64, start, end time.Time) (*DriverResult, error) {
	latest, err := e.inspections.LatestInspection(ctx, driverID, start, end)
	if err != nil {
		return nil, err
	}
	r := &DriverResult{DriverID: driverID}
	if latest == nil {
		return r, nil
	}
	r.HasCompletedTodaysCheck = true
	r.LatestCheck = &CheckSummary{
		ID:            latest.ID,
		CompletedAt:   latest.CreatedAt,
		VehicleNumber: optional(latest.Metadata.VehicleNumber),
		Status:        optional(string(latest.Metadata.Status)),
	}
	return r, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
