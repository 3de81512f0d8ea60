package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/metrics"
)

// DefaultCompletionThreshold is the fraction of a chapter the player must
// reach before it fires a completion report.
const DefaultCompletionThreshold = 0.9

// CompletionPolicy decides whether completion reports are taken at face
// value. With Strict unset the client's threshold check is trusted; with
// Strict set the stored watched seconds must already cover Threshold of
// the chapter duration.
type CompletionPolicy struct {
	Strict    bool
	Threshold float64
}

// ProgressService is the watch-progress engine. It accepts out-of-order and
// duplicate ticks from player polling loops and merges them into the store.
type ProgressService struct {
	progress    domain.ProgressRepository
	courses     domain.CourseRepository
	enrollments domain.EnrollmentRepository
	policy      CompletionPolicy
	now         func() time.Time
}

// NewProgressService creates a new ProgressService.
func NewProgressService(progress domain.ProgressRepository, courses domain.CourseRepository, enrollments domain.EnrollmentRepository, policy CompletionPolicy) *ProgressService {
	if policy.Threshold <= 0 || policy.Threshold > 1 {
		policy.Threshold = DefaultCompletionThreshold
	}
	return &ProgressService{
		progress:    progress,
		courses:     courses,
		enrollments: enrollments,
		policy:      policy,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *ProgressService) SetClock(now func() time.Time) { s.now = now }

// ReportProgress records that the student's player reached observedSeconds.
// The stored position only ever grows, so retries and late ticks are harmless.
func (s *ProgressService) ReportProgress(ctx context.Context, studentID, chapterID int64, observedSeconds int) (*domain.WatchProgress, error) {
	if observedSeconds < 0 {
		return nil, fmt.Errorf("%w: watched seconds must not be negative", domain.ErrInvalidInput)
	}

	chapter, err := s.viewableChapter(ctx, studentID, chapterID)
	if err != nil {
		return nil, err
	}

	seconds := observedSeconds
	if chapter.DurationSeconds > 0 {
		seconds = min(seconds, chapter.DurationSeconds)
	}

	p, err := s.progress.MergeWatched(ctx, studentID, chapterID, seconds, s.now())
	if err != nil {
		return nil, fmt.Errorf("merge progress: %w", err)
	}
	metrics.RecordProgressReport("tick")
	return p, nil
}

// ReportCompletion marks the chapter as completed for the student. Repeated
// calls are no-ops and keep the first completion time.
func (s *ProgressService) ReportCompletion(ctx context.Context, studentID, chapterID int64) (*domain.WatchProgress, error) {
	chapter, err := s.viewableChapter(ctx, studentID, chapterID)
	if err != nil {
		return nil, err
	}

	if s.policy.Strict {
		current, err := s.progress.Get(ctx, studentID, chapterID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			current = &domain.WatchProgress{StudentID: studentID, ChapterID: chapterID}
		case err != nil:
			return nil, fmt.Errorf("get progress: %w", err)
		}
		if current.IsCompleted {
			return current, nil
		}
		required := s.policy.Threshold * float64(chapter.DurationSeconds)
		if float64(current.WatchedSeconds) < required {
			return nil, fmt.Errorf("%w: watched %ds of %ds, completion needs %.0f%%",
				domain.ErrInvalidInput, current.WatchedSeconds, chapter.DurationSeconds, s.policy.Threshold*100)
		}
	}

	p, err := s.progress.MarkCompleted(ctx, studentID, chapterID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	metrics.RecordProgressReport("completion")
	return p, nil
}

// Resume returns the stored playback state used to seek the player. A
// chapter that was never played yields a zero snapshot.
func (s *ProgressService) Resume(ctx context.Context, studentID, chapterID int64) (*domain.WatchProgress, error) {
	if _, err := s.publishedChapter(ctx, chapterID); err != nil {
		return nil, err
	}

	p, err := s.progress.Get(ctx, studentID, chapterID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.WatchProgress{StudentID: studentID, ChapterID: chapterID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

func (s *ProgressService) publishedChapter(ctx context.Context, chapterID int64) (*domain.Chapter, error) {
	chapter, err := s.courses.GetChapter(ctx, chapterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", domain.ErrNotFound, chapterID)
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	if !chapter.IsPublished {
		return nil, fmt.Errorf("%w: chapter %d", domain.ErrNotFound, chapterID)
	}
	return chapter, nil
}

// viewableChapter loads the chapter and checks the student may play it:
// free chapters are open to everyone, paid ones need an enrollment that
// currently grants access to the course.
func (s *ProgressService) viewableChapter(ctx context.Context, studentID, chapterID int64) (*domain.Chapter, error) {
	chapter, err := s.publishedChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.IsFree {
		return chapter, nil
	}

	enrollment, err := s.enrollments.FindOpen(ctx, studentID, chapter.CourseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no enrollment for course %d", domain.ErrAccessDenied, chapter.CourseID)
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	if !enrollment.GrantsAccess(s.now()) {
		return nil, fmt.Errorf("%w: enrollment %d does not grant access", domain.ErrAccessDenied, enrollment.ID)
	}
	return chapter, nil
}
