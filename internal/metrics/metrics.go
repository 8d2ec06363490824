package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

var (
	once sync.Once

	// MissionTransitions counts mission status changes, labeled by source and target status.
	MissionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "dispatch",
		Name:      "mission_transitions_total",
		Help:      "Total number of mission status changes. A newly created mission has an empty from label.",
	}, []string{"from", "to"})

	// MissionsByStatus mirrors the dashboard overview.
	MissionsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fleet",
		Subsystem: "dispatch",
		Name:      "missions",
		Help:      "Number of missions per status as of the last overview refresh.",
	}, []string{"status"})

	// ComplianceRate is the completion rate of the last daily compliance run.
	ComplianceRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleet",
		Subsystem: "compliance",
		Name:      "daily_check_rate_percent",
		Help:      "Percentage of active drivers with a completed daily check in the last evaluation.",
	})

	// ComplianceLookupFailures counts per-driver lookups that failed during evaluation.
	ComplianceLookupFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "compliance",
		Name:      "lookup_failures_total",
		Help:      "Total number of per-driver daily check lookups that failed and were excluded.",
	})

	// InspectionsTotal counts submitted daily checks by computed status.
	InspectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "compliance",
		Name:      "inspections_total",
		Help:      "Total number of daily checks submitted, labeled by computed status.",
	}, []string{"status"})

	// HTTPRequestDuration is the latency of API requests.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleet",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of API requests, labeled by route pattern and status code.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route", "code"})
)

// Register registers the fleet metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			MissionTransitions,
			MissionsByStatus,
			ComplianceRate,
			ComplianceLookupFailures,
			InspectionsTotal,
			HTTPRequestDuration,
		)
	})
}

// ObserveOverview updates the per-status gauge from a mission overview.
func ObserveOverview(overview models.MissionOverview) {
	for _, st := range models.MissionStatuses {
		MissionsByStatus.WithLabelValues(string(st)).Set(float64(overview.Counts[st]))
	}
}
