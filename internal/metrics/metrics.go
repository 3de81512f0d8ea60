package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnrollmentTransitionTotal counts applied enrollment status changes.
	EnrollmentTransitionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemarket_enrollment_transition_total",
			Help: "Total number of applied enrollment transitions by source and target status",
		},
		[]string{"from", "to"},
	)

	// EnrollmentCreatedTotal counts checkouts that produced a PENDING enrollment.
	EnrollmentCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursemarket_enrollment_created_total",
			Help: "Total number of pending enrollments created",
		},
	)

	// PaymentEventTotal counts payment collaborator events by outcome and result
	// (applied, replayed, rejected).
	PaymentEventTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemarket_payment_event_total",
			Help: "Total number of payment events by outcome and handling result",
		},
		[]string{"outcome", "result"},
	)

	// ProgressReportTotal counts watch progress reports by kind (tick, completion).
	ProgressReportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemarket_progress_report_total",
			Help: "Total number of watch progress reports by kind",
		},
		[]string{"kind"},
	)
)

func RecordTransition(from, to string) {
	EnrollmentTransitionTotal.WithLabelValues(from, to).Inc()
}

func RecordPaymentEvent(outcome, result string) {
	PaymentEventTotal.WithLabelValues(outcome, result).Inc()
}

func RecordProgressReport(kind string) {
	ProgressReportTotal.WithLabelValues(kind).Inc()
}
