// Package jobs holds the scheduled background work of the API server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
)

const runTimeout = 2 * time.Minute

// Evaluator is satisfied by *compliance.Evaluator.
type Evaluator interface {
	EvaluateActive(ctx context.Context, date time.Time) (compliance.Summary, error)
}

// ComplianceJob evaluates the daily checks of all active drivers on a
// schedule and publishes the completion rate.
type ComplianceJob struct {
	scheduler *cron.Cron
	evaluator Evaluator
	schedule  string
	jobID     cron.EntryID
}

// NewComplianceJob uses a six field cron spec (with seconds) evaluated in loc.
func NewComplianceJob(evaluator Evaluator, schedule string, loc *time.Location) *ComplianceJob {
	if loc == nil {
		loc = time.Local
	}
	return &ComplianceJob{
		scheduler: cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		evaluator: evaluator,
		schedule:  schedule,
	}
}

// Start schedules the job and starts the scheduler.
func (j *ComplianceJob) Start() error {
	var err error
	j.jobID, err = j.scheduler.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		j.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("error scheduling compliance job: %w", err)
	}

	j.scheduler.Start()
	log.WithField("schedule", j.schedule).Info("Compliance job scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running evaluation to finish.
func (j *ComplianceJob) Stop() {
	<-j.scheduler.Stop().Done()
	log.Info("Compliance job stopped")
}

// Run evaluates today's compliance once.
func (j *ComplianceJob) Run(ctx context.Context) (compliance.Summary, error) {
	summary, err := j.evaluator.EvaluateActive(ctx, time.Time{})
	if err != nil {
		log.WithError(err).Error("Compliance evaluation failed")
		return summary, err
	}

	metrics.ComplianceRate.Set(float64(summary.CompletionRate))
	entry := log.WithFields(log.Fields{
		"date":            summary.Date,
		"completed":       summary.Completed,
		"pending":         summary.Pending,
		"failed":          summary.Failed,
		"completion_rate": summary.CompletionRate,
	})
	if summary.Failed > 0 {
		entry.Warn("Compliance evaluated with failed lookups")
	} else {
		entry.Info("Compliance evaluated")
	}
	return summary, nil
}
