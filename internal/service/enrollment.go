package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/metrics"
)

// cancelAttempts bounds how often Cancel re-reads an enrollment that a
// payment event moved underneath it.
const cancelAttempts = 3

// Requester identifies who is asking for an enrollment change.
type Requester struct {
	UserID int64
	Admin  bool
}

// RequesterFor builds a Requester from an authenticated user.
func RequesterFor(u *domain.User) Requester {
	return Requester{UserID: u.ID, Admin: u.IsAdmin()}
}

// EnrollmentService owns the enrollment lifecycle:
//
//	PENDING   --payment succeeds--> COMPLETED
//	PENDING   --payment fails-----> FAILED
//	PENDING   --cancel------------> REFUNDED
//	COMPLETED --cancel/refund-----> REFUNDED
//
// A FAILED checkout is retried by creating a new PENDING enrollment.
type EnrollmentService struct {
	enrollments domain.EnrollmentRepository
	courses     domain.CourseRepository
	accessTTL   time.Duration
	now         func() time.Time
}

// NewEnrollmentService creates a new EnrollmentService. A positive accessTTL
// limits how long a paid enrollment grants access.
func NewEnrollmentService(enrollments domain.EnrollmentRepository, courses domain.CourseRepository, accessTTL time.Duration) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		accessTTL:   accessTTL,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *EnrollmentService) SetClock(now func() time.Time) { s.now = now }

// CreatePending starts a checkout. It fails with ErrDuplicateEnrollment
// while another PENDING or COMPLETED enrollment holds the pair. A paid
// enrollment whose access window has closed is deactivated first so the
// student can buy the course again.
func (s *EnrollmentService) CreatePending(ctx context.Context, studentID, courseID, amount int64, currency string) (*domain.Enrollment, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrInvalidInput)
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if !course.IsPublished {
		return nil, fmt.Errorf("%w: course %d is not published", domain.ErrNotFound, courseID)
	}

	enrollment := &domain.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Amount:    amount,
		Currency:  currency,
	}
	err = s.enrollments.Create(ctx, enrollment)
	if errors.Is(err, domain.ErrDuplicateEnrollment) {
		released, releaseErr := s.releaseExpired(ctx, studentID, courseID)
		if releaseErr != nil {
			return nil, releaseErr
		}
		if !released {
			return nil, err
		}
		err = s.enrollments.Create(ctx, enrollment)
	}
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEnrollment) {
			return nil, err
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	metrics.EnrollmentCreatedTotal.Inc()
	slog.Info("enrollment created", "enrollment_id", enrollment.ID, "student_id", studentID, "course_id", courseID)
	return enrollment, nil
}

// releaseExpired deactivates the pair's open enrollment when it is a paid
// enrollment past its validUntil.
func (s *EnrollmentService) releaseExpired(ctx context.Context, studentID, courseID int64) (bool, error) {
	open, err := s.enrollments.FindOpen(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The holder went away between the insert and this read.
			return true, nil
		}
		return false, fmt.Errorf("find open enrollment: %w", err)
	}
	now := s.now()
	if !open.Expired(now) {
		return false, nil
	}

	expired, err := s.enrollments.Expire(ctx, open.ID, now)
	if err != nil {
		return false, err
	}
	if expired {
		metrics.RecordTransition(string(domain.StatusCompleted), "EXPIRED")
		slog.Info("expired enrollment released", "enrollment_id", open.ID, "student_id", studentID, "course_id", courseID)
	}
	return true, nil
}

// Checkout starts a checkout priced from the catalog.
func (s *EnrollmentService) Checkout(ctx context.Context, studentID, courseID int64) (*domain.Enrollment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return s.CreatePending(ctx, studentID, courseID, course.Price, course.Currency)
}

// ResolvePayment applies the payment collaborator's verdict to a PENDING
// enrollment. A second verdict for the same enrollment is reported as
// ErrInvalidTransition so replays stay visible to the caller.
func (s *EnrollmentService) ResolvePayment(ctx context.Context, enrollmentID int64, outcome domain.PaymentOutcome, paymentID string) (*domain.Enrollment, error) {
	t := domain.Transition{From: domain.StatusPending}
	if paymentID != "" {
		t.PaymentID = &paymentID
	}

	switch outcome {
	case domain.PaymentSucceeded:
		if paymentID == "" {
			return nil, fmt.Errorf("%w: payment id is required for a successful payment", domain.ErrInvalidInput)
		}
		t.To = domain.StatusCompleted
		if s.accessTTL > 0 {
			validUntil := s.now().Add(s.accessTTL).UTC()
			t.ValidUntil = &validUntil
		}
	case domain.PaymentFailed:
		t.To = domain.StatusFailed
	default:
		return nil, fmt.Errorf("%w: unknown payment outcome %q", domain.ErrInvalidInput, outcome)
	}

	enrollment, err := s.enrollments.Apply(ctx, enrollmentID, t)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			metrics.RecordPaymentEvent(string(outcome), "replayed")
			slog.Warn("payment event for resolved enrollment", "enrollment_id", enrollmentID, "outcome", outcome, "error", err)
			return enrollment, err
		case errors.Is(err, domain.ErrNotFound):
			metrics.RecordPaymentEvent(string(outcome), "rejected")
			return nil, err
		}
		return nil, fmt.Errorf("resolve payment: %w", err)
	}

	metrics.RecordPaymentEvent(string(outcome), "applied")
	metrics.RecordTransition(string(t.From), string(t.To))
	slog.Info("payment resolved", "enrollment_id", enrollmentID, "status", enrollment.Status)
	return enrollment, nil
}

// Cancel abandons a pending checkout or refunds a paid enrollment. Only the
// enrolled student or an admin may cancel. Watch progress is kept.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID int64, requester Requester) (*domain.Enrollment, error) {
	for range cancelAttempts {
		enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
		if err != nil {
			return nil, err
		}
		if enrollment.StudentID != requester.UserID && !requester.Admin {
			return nil, domain.ErrForbidden
		}
		if enrollment.Status.Terminal() {
			return nil, fmt.Errorf("%w: enrollment is %s", domain.ErrInvalidTransition, enrollment.Status)
		}

		from := enrollment.Status
		enrollment, err = s.enrollments.Apply(ctx, enrollmentID, domain.Transition{From: from, To: domain.StatusRefunded})
		if errors.Is(err, domain.ErrInvalidTransition) {
			// A payment event won the race; look again.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cancel enrollment: %w", err)
		}

		metrics.RecordTransition(string(from), string(domain.StatusRefunded))
		slog.Info("enrollment cancelled", "enrollment_id", enrollmentID, "from", from, "by", requester.UserID)
		return enrollment, nil
	}
	return nil, fmt.Errorf("%w: enrollment %d kept changing", domain.ErrInvalidTransition, enrollmentID)
}

// ContinuePayment returns the student's pending enrollment so checkout can
// be resumed. It never changes state.
func (s *EnrollmentService) ContinuePayment(ctx context.Context, enrollmentID int64, requester Requester) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != requester.UserID {
		return nil, domain.ErrForbidden
	}
	if enrollment.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: enrollment is %s", domain.ErrInvalidTransition, enrollment.Status)
	}
	return enrollment, nil
}

// GetByID returns an enrollment visible to the requester.
func (s *EnrollmentService) GetByID(ctx context.Context, enrollmentID int64, requester Requester) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != requester.UserID && !requester.Admin {
		return nil, domain.ErrForbidden
	}
	return enrollment, nil
}
