package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/course-market/internal/domain"
)

// CourseRepository implements domain.CourseRepository using SQLite.
type CourseRepository struct {
	db *sql.DB
}

// NewCourseRepository creates a new SQLite-backed CourseRepository.
func NewCourseRepository(db *DB) *CourseRepository {
	return &CourseRepository{db: db.SqlDB}
}

const chapterColumns = `id, course_id, title, position, duration_seconds, video_url, is_free, is_published`

func (r *CourseRepository) Upsert(ctx context.Context, course *domain.Course) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (title, description, price, currency, is_published, level, language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (title) DO UPDATE SET
		   description = excluded.description, price = excluded.price, currency = excluded.currency,
		   is_published = excluded.is_published, level = excluded.level, language = excluded.language,
		   updated_at = excluded.updated_at`,
		course.Title, course.Description, course.Price, course.Currency, course.IsPublished,
		string(course.Level), course.Language, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM courses WHERE title = ?", course.Title,
	).Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt); err != nil {
		return fmt.Errorf("get course id: %w", err)
	}

	positions := make([]any, 0, len(course.Chapters)+1)
	positions = append(positions, course.ID)
	for i := range course.Chapters {
		ch := &course.Chapters[i]
		ch.CourseID = course.ID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chapters (course_id, title, position, duration_seconds, video_url, is_free, is_published)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (course_id, position) DO UPDATE SET
			   title = excluded.title, duration_seconds = excluded.duration_seconds,
			   video_url = excluded.video_url, is_free = excluded.is_free, is_published = excluded.is_published`,
			ch.CourseID, ch.Title, ch.Position, ch.DurationSeconds, ch.VideoURL, ch.IsFree, ch.IsPublished,
		)
		if err != nil {
			return fmt.Errorf("upsert chapter %d: %w", ch.Position, err)
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT id FROM chapters WHERE course_id = ? AND position = ?", ch.CourseID, ch.Position,
		).Scan(&ch.ID); err != nil {
			return fmt.Errorf("get chapter id: %w", err)
		}
		positions = append(positions, ch.Position)
	}

	// Chapters dropped from the catalog are unpublished rather than deleted,
	// so watch progress recorded against them survives.
	query := "UPDATE chapters SET is_published = 0 WHERE course_id = ?"
	if len(positions) > 1 {
		query += " AND position NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(positions)-1), ",") + ")"
	}
	if _, err := tx.ExecContext(ctx, query, positions...); err != nil {
		return fmt.Errorf("unpublish removed chapters: %w", err)
	}

	return tx.Commit()
}

func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*domain.Course, error) {
	c := &domain.Course{}
	var level string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price, currency, is_published, level, language, created_at, updated_at
		 FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.Currency, &c.IsPublished, &level, &c.Language, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	c.Level = domain.CourseLevel(level)

	c.Chapters, err = r.ListChapters(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepository) GetChapter(ctx context.Context, id int64) (*domain.Chapter, error) {
	ch := &domain.Chapter{}
	err := r.db.QueryRowContext(ctx,
		"SELECT "+chapterColumns+" FROM chapters WHERE id = ?", id,
	).Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position, &ch.DurationSeconds, &ch.VideoURL, &ch.IsFree, &ch.IsPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return ch, nil
}

func (r *CourseRepository) ListChapters(ctx context.Context, courseID int64) ([]domain.Chapter, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chapterColumns+" FROM chapters WHERE course_id = ? ORDER BY position", courseID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []domain.Chapter
	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position, &ch.DurationSeconds, &ch.VideoURL, &ch.IsFree, &ch.IsPublished); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}
