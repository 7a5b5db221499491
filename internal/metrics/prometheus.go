// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the progression service.
var (
	// Counters.
	SubmissionsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_recorded_total",
			Help: "Total number of submission outcomes recorded",
		},
		[]string{"status", "difficulty"},
	)

	ProblemsSolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problems_solved_total",
			Help: "Total number of first accepted solves",
		},
		[]string{"difficulty"},
	)

	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge_name"},
	)

	CoinsEarnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_earned_total",
			Help: "Total coins credited to users",
		},
		[]string{"source"},
	)

	CoinsSpentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_spent_total",
			Help: "Total coins debited from users",
		},
		[]string{"source"},
	)

	StorePurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_purchases_total",
			Help: "Total store purchase attempts",
		},
		[]string{"item_type", "status"},
	)

	TimeTravelTicketsUsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "time_travel_tickets_used_total",
			Help: "Total time travel tickets consumed",
		},
	)

	// Gauges.
	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_badge_holders",
			Help: "Current number of users holding each badge",
		},
		[]string{"badge_name"},
	)

	// Histograms.
	BadgeSweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "badge_sweep_duration_seconds",
			Help:    "Time taken to run a per-user badge sweep",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total reconciliation job executions",
		},
		[]string{"status"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute the reconciliation job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~1024s
		},
	)
)

// RecordSubmission records a submission outcome.
func RecordSubmission(status, difficulty string) {
	SubmissionsRecordedTotal.WithLabelValues(status, difficulty).Inc()
}

// RecordProblemSolved records a first accepted solve.
func RecordProblemSolved(difficulty string) {
	ProblemsSolvedTotal.WithLabelValues(difficulty).Inc()
}

// RecordBadgeAwarded records a badge award event.
func RecordBadgeAwarded(badgeName string) {
	BadgesAwardedTotal.WithLabelValues(badgeName).Inc()
}

// SetActiveBadgeHolders sets the number of holders for a badge.
func SetActiveBadgeHolders(badgeName string, count int) {
	ActiveBadgeHolders.WithLabelValues(badgeName).Set(float64(count))
}

// RecordCoinsEarned records credited coins.
func RecordCoinsEarned(source string, amount int64) {
	CoinsEarnedTotal.WithLabelValues(source).Add(float64(amount))
}

// RecordCoinsSpent records debited coins.
func RecordCoinsSpent(source string, amount int64) {
	CoinsSpentTotal.WithLabelValues(source).Add(float64(amount))
}

// RecordStorePurchase records a purchase attempt.
func RecordStorePurchase(itemType, status string) {
	StorePurchasesTotal.WithLabelValues(itemType, status).Inc()
}

// RecordTimeTravelTicketUsed records a consumed time travel ticket.
func RecordTimeTravelTicketUsed() {
	TimeTravelTicketsUsedTotal.Inc()
}

// ObserveBadgeSweepDuration observes the duration of a badge sweep.
func ObserveBadgeSweepDuration(seconds float64) {
	BadgeSweepDurationSeconds.Observe(seconds)
}

// RecordSchedulerJobRun records a reconciliation job execution.
func RecordSchedulerJobRun(status string) {
	SchedulerJobsRunTotal.WithLabelValues(status).Inc()
}

// ObserveSchedulerJobDuration observes the duration of a reconciliation job.
func ObserveSchedulerJobDuration(seconds float64) {
	SchedulerJobDurationSeconds.Observe(seconds)
}
