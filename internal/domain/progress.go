package domain

import (
	"context"
	"time"
)

// WatchProgress is one student's playback state for one chapter.
// WatchedSeconds never decreases; CompletedAt is set once.
type WatchProgress struct {
	ID             int64
	StudentID      int64
	ChapterID      int64
	IsCompleted    bool
	WatchedSeconds int
	LastWatchedAt  time.Time
	CompletedAt    *time.Time
}

// LearningProgress is how far a student got through the eligible chapters
// of a course. Percent is round(100 * Completed / Total), 0 when Total is 0.
type LearningProgress struct {
	CompletedChapters int
	TotalChapters     int
	Percent           int
}

// ProgressRepository persists watch progress with atomic upserts.
type ProgressRepository interface {
	// MergeWatched upserts the row, keeping the larger of the stored and
	// given watched seconds.
	MergeWatched(ctx context.Context, studentID, chapterID int64, seconds int, at time.Time) (*WatchProgress, error)
	// MarkCompleted upserts the row as completed. A row that is already
	// completed keeps its original CompletedAt.
	MarkCompleted(ctx context.Context, studentID, chapterID int64, at time.Time) (*WatchProgress, error)
	Get(ctx context.Context, studentID, chapterID int64) (*WatchProgress, error)
	ListByStudentAndCourse(ctx context.Context, studentID, courseID int64) ([]WatchProgress, error)
}
