package domain

import (
	"context"
	"time"
)

// AccessStatus is the payment/access state of an enrollment. COMPLETED
// means payment succeeded and access is granted; it says nothing about
// how far the student got through the course (see LearningProgress).
type AccessStatus string

const (
	StatusPending   AccessStatus = "PENDING"
	StatusCompleted AccessStatus = "COMPLETED"
	StatusFailed    AccessStatus = "FAILED"
	StatusRefunded  AccessStatus = "REFUNDED"
)

// Terminal reports whether no further transition is possible.
func (s AccessStatus) Terminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// CanTransition reports whether the lifecycle graph has an edge from s to next.
func (s AccessStatus) CanTransition(next AccessStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed || next == StatusRefunded
	case StatusCompleted:
		return next == StatusRefunded
	}
	return false
}

// PaymentOutcome is what the payment collaborator reports for a checkout.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentFailed    PaymentOutcome = "failure"
)

type Enrollment struct {
	ID         int64
	StudentID  int64
	CourseID   int64
	Amount     int64
	Currency   string
	PaymentID  *string
	Status     AccessStatus
	ValidUntil *time.Time
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GrantsAccess reports whether paid chapters of the course are viewable at now.
func (e *Enrollment) GrantsAccess(now time.Time) bool {
	if e.Status != StatusCompleted || !e.IsActive {
		return false
	}
	return e.ValidUntil == nil || now.Before(*e.ValidUntil)
}

// Expired reports whether a paid enrollment has outlived its access window.
func (e *Enrollment) Expired(now time.Time) bool {
	if e.Status != StatusCompleted {
		return false
	}
	return !e.IsActive || (e.ValidUntil != nil && !now.Before(*e.ValidUntil))
}

// Transition describes a guarded status change applied atomically by the store.
type Transition struct {
	From       AccessStatus
	To         AccessStatus
	PaymentID  *string
	ValidUntil *time.Time
}

// EnrollmentRepository persists enrollments. At most one active PENDING or
// COMPLETED enrollment may exist per (student, course); Create enforces it.
type EnrollmentRepository interface {
	// Create inserts a PENDING enrollment or returns ErrDuplicateEnrollment.
	Create(ctx context.Context, enrollment *Enrollment) error
	GetByID(ctx context.Context, id int64) (*Enrollment, error)
	ListByStudent(ctx context.Context, studentID int64) ([]Enrollment, error)
	// FindOpen returns the active PENDING or COMPLETED enrollment for the pair.
	FindOpen(ctx context.Context, studentID, courseID int64) (*Enrollment, error)
	// Expire deactivates a COMPLETED enrollment whose validUntil is at or
	// before now, releasing its open slot. It reports whether a row changed.
	Expire(ctx context.Context, id int64, now time.Time) (bool, error)
	// Apply performs t only if the row is still in t.From. It returns
	// ErrInvalidTransition when the row moved on and ErrNotFound when it
	// does not exist.
	Apply(ctx context.Context, id int64, t Transition) (*Enrollment, error)
	CountByStatus(ctx context.Context) (map[AccessStatus]int, error)
}
