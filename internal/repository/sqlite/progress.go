package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/course-market/internal/domain"
)

// ProgressRepository implements domain.ProgressRepository using SQLite.
// Both writes are single upsert statements, so concurrent ticks for the
// same chapter merge instead of overwriting each other.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new SQLite-backed ProgressRepository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db.SqlDB}
}

const progressColumns = `id, student_id, chapter_id, is_completed, watched_seconds, last_watched_at, completed_at`

func (r *ProgressRepository) MergeWatched(ctx context.Context, studentID, chapterID int64, seconds int, at time.Time) (*domain.WatchProgress, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_progress (student_id, chapter_id, watched_seconds, last_watched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (student_id, chapter_id) DO UPDATE SET
		   watched_seconds = MAX(watch_progress.watched_seconds, excluded.watched_seconds),
		   last_watched_at = excluded.last_watched_at`,
		studentID, chapterID, seconds, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("merge watch progress: %w", err)
	}
	return r.Get(ctx, studentID, chapterID)
}

func (r *ProgressRepository) MarkCompleted(ctx context.Context, studentID, chapterID int64, at time.Time) (*domain.WatchProgress, error) {
	at = at.UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_progress (student_id, chapter_id, is_completed, last_watched_at, completed_at)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT (student_id, chapter_id) DO UPDATE SET
		   is_completed = 1,
		   completed_at = COALESCE(watch_progress.completed_at, excluded.completed_at),
		   last_watched_at = excluded.last_watched_at`,
		studentID, chapterID, at, at,
	)
	if err != nil {
		return nil, fmt.Errorf("mark chapter completed: %w", err)
	}
	return r.Get(ctx, studentID, chapterID)
}

func (r *ProgressRepository) Get(ctx context.Context, studentID, chapterID int64) (*domain.WatchProgress, error) {
	p := &domain.WatchProgress{}
	err := r.db.QueryRowContext(ctx,
		"SELECT "+progressColumns+" FROM watch_progress WHERE student_id = ? AND chapter_id = ?",
		studentID, chapterID,
	).Scan(&p.ID, &p.StudentID, &p.ChapterID, &p.IsCompleted, &p.WatchedSeconds, &p.LastWatchedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get watch progress: %w", err)
	}
	return p, nil
}

func (r *ProgressRepository) ListByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]domain.WatchProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT wp.id, wp.student_id, wp.chapter_id, wp.is_completed, wp.watched_seconds,
		 wp.last_watched_at, wp.completed_at
		 FROM watch_progress wp
		 JOIN chapters c ON c.id = wp.chapter_id
		 WHERE wp.student_id = ? AND c.course_id = ?
		 ORDER BY c.position`, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list watch progress: %w", err)
	}
	defer rows.Close()

	var list []domain.WatchProgress
	for rows.Next() {
		var p domain.WatchProgress
		if err := rows.Scan(&p.ID, &p.StudentID, &p.ChapterID, &p.IsCompleted, &p.WatchedSeconds, &p.LastWatchedAt, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan watch progress: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
