package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/msomdec/course-market/internal/domain"
)

var enrollmentsDesc = prometheus.NewDesc(
	"coursemarket_enrollments",
	"Current number of enrollments by access status",
	[]string{"status"},
	nil,
)

// statusCounter is the slice of domain.EnrollmentRepository the collector needs.
type statusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.AccessStatus]int, error)
}

// EnrollmentCollector reports enrollment counts straight from the store on
// every scrape.
type EnrollmentCollector struct {
	enrollments statusCounter
}

func NewEnrollmentCollector(enrollments statusCounter) *EnrollmentCollector {
	return &EnrollmentCollector{enrollments: enrollments}
}

func (c *EnrollmentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- enrollmentsDesc
}

func (c *EnrollmentCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.enrollments.CountByStatus(ctx)
	if err != nil {
		slog.Error("collect enrollment counts", "error", err)
		ch <- prometheus.NewInvalidMetric(enrollmentsDesc, err)
		return
	}

	for _, status := range []domain.AccessStatus{
		domain.StatusPending, domain.StatusCompleted, domain.StatusFailed, domain.StatusRefunded,
	} {
		ch <- prometheus.MustNewConstMetric(enrollmentsDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
