package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/course-market/internal/domain"
)

// EnrollmentRepository implements domain.EnrollmentRepository using SQLite.
// The one-open-enrollment rule lives in the idx_enrollments_open partial
// unique index, so concurrent checkouts cannot both succeed.
type EnrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new SQLite-backed EnrollmentRepository.
func NewEnrollmentRepository(db *DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db.SqlDB}
}

const enrollmentColumns = `id, student_id, course_id, amount, currency, payment_id, status,
	valid_until, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(s scanner) (*domain.Enrollment, error) {
	e := &domain.Enrollment{}
	var status string
	if err := s.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Amount, &e.Currency, &e.PaymentID, &status,
		&e.ValidUntil, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.AccessStatus(status)
	return e, nil
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	now := time.Now().UTC()
	enrollment.Status = domain.StatusPending
	enrollment.IsActive = true
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, amount, currency, status, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		enrollment.StudentID, enrollment.CourseID, enrollment.Amount, enrollment.Currency,
		string(enrollment.Status), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateEnrollment
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get enrollment id: %w", err)
	}

	enrollment.ID = id
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	return nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id int64) (*domain.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) FindOpen(ctx context.Context, studentID, courseID int64) (*domain.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		"SELECT "+enrollmentColumns+` FROM enrollments
		 WHERE student_id = ? AND course_id = ? AND status IN ('PENDING', 'COMPLETED') AND is_active = 1
		 ORDER BY id DESC LIMIT 1`,
		studentID, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find open enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]domain.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE student_id = ? ORDER BY updated_at DESC, id DESC",
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func (r *EnrollmentRepository) Apply(ctx context.Context, id int64, t domain.Transition) (*domain.Enrollment, error) {
	if !t.From.CanTransition(t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.From, t.To)
	}

	active := !t.To.Terminal()
	result, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET
		   status = ?, payment_id = COALESCE(?, payment_id), valid_until = COALESCE(?, valid_until),
		   is_active = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.To), t.PaymentID, t.ValidUntil, active, time.Now().UTC(), id, string(t.From),
	)
	if err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return current, fmt.Errorf("%w: enrollment is %s, not %s", domain.ErrInvalidTransition, current.Status, t.From)
	}
	return current, nil
}

func (r *EnrollmentRepository) Expire(ctx context.Context, id int64, now time.Time) (bool, error) {
	now = now.UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET is_active = 0, updated_at = ?
		 WHERE id = ? AND status = 'COMPLETED' AND is_active = 1
		   AND valid_until IS NOT NULL AND valid_until <= ?`,
		now, id, now,
	)
	if err != nil {
		return false, fmt.Errorf("expire enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *EnrollmentRepository) CountByStatus(ctx context.Context) (map[domain.AccessStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM enrollments GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AccessStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan enrollment count: %w", err)
		}
		counts[domain.AccessStatus(status)] = n
	}
	return counts, rows.Err()
}
