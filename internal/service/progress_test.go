package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/msomdec/course-market/internal/domain"
)

func TestProgressService_ReportProgress_FreeChapterWithoutEnrollment(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "free@example.com")
	course := f.course(t, "Go Basics", 1, 300, 300)

	p, err := f.progress.ReportProgress(context.Background(), student, course.Chapters[0].ID, 42)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if p.WatchedSeconds != 42 {
		t.Fatalf("expected 42 watched seconds, got %d", p.WatchedSeconds)
	}
}

func TestProgressService_ReportProgress_AccessDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "nope@example.com")
	course := f.course(t, "Go Basics", 1, 300, 300)
	paidChapter := course.Chapters[1].ID

	if _, err := f.progress.ReportProgress(ctx, student, paidChapter, 10); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied without enrollment, got %v", err)
	}

	if _, err := f.enrollments.Checkout(ctx, student, course.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := f.progress.ReportProgress(ctx, student, paidChapter, 10); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied with pending enrollment, got %v", err)
	}
	if _, err := f.progress.ReportCompletion(ctx, student, paidChapter); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on completion, got %v", err)
	}
}

func TestProgressService_ReportProgress_InvalidInput(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "neg@example.com")
	course := f.course(t, "Go Basics", 1, 300)

	_, err := f.progress.ReportProgress(context.Background(), student, course.Chapters[0].ID, -1)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProgressService_ReportProgress_UnknownChapter(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "missing@example.com")

	_, err := f.progress.ReportProgress(context.Background(), student, 9999, 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressService_ReportProgress_UnpublishedChapter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "hidden@example.com")
	course := f.course(t, "Go Basics", 2, 300, 300)

	course.Chapters[1].IsPublished = false
	if err := f.db.Courses().Upsert(ctx, course); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if _, err := f.progress.ReportProgress(ctx, student, course.Chapters[1].ID, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unpublished chapter, got %v", err)
	}
}

func TestProgressService_ReportProgress_ClampsToDuration(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "clamp@example.com")
	course := f.course(t, "Go Basics", 1, 120)

	p, err := f.progress.ReportProgress(context.Background(), student, course.Chapters[0].ID, 500)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if p.WatchedSeconds != 120 {
		t.Fatalf("expected watched seconds clamped to 120, got %d", p.WatchedSeconds)
	}
}

func TestProgressService_ReportProgress_OutOfOrderTicks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "ticks@example.com")
	course := f.course(t, "Go Basics", 0, 600)
	f.paid(t, student, course.ID)
	chapter := course.Chapters[0].ID

	for _, s := range []int{95, 60, 30, 80} {
		if _, err := f.progress.ReportProgress(ctx, student, chapter, s); err != nil {
			t.Fatalf("ReportProgress(%d): %v", s, err)
		}
	}

	p, err := f.progress.Resume(ctx, student, chapter)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.WatchedSeconds != 95 {
		t.Fatalf("expected 95 watched seconds, got %d", p.WatchedSeconds)
	}
}

func TestProgressService_ReportProgress_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "race@example.com")
	course := f.course(t, "Go Basics", 1, 600)
	chapter := course.Chapters[0].ID

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		wg.Go(func() {
			if _, err := f.progress.ReportProgress(ctx, student, chapter, (i*37)%400); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ReportProgress: %v", err)
	}

	want := 0
	for i := range 100 {
		want = max(want, (i*37)%400)
	}
	p, err := f.progress.Resume(ctx, student, chapter)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.WatchedSeconds != want {
		t.Fatalf("expected %d watched seconds, got %d", want, p.WatchedSeconds)
	}
}

func TestProgressService_ReportCompletion_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "done@example.com")
	course := f.course(t, "Go Basics", 1, 300)
	chapter := course.Chapters[0].ID

	first, err := f.progress.ReportCompletion(ctx, student, chapter)
	if err != nil {
		t.Fatalf("first ReportCompletion: %v", err)
	}
	if !first.IsCompleted || first.CompletedAt == nil {
		t.Fatalf("expected completed row with CompletedAt, got %+v", first)
	}

	f.advance(time.Hour)
	second, err := f.progress.ReportCompletion(ctx, student, chapter)
	if err != nil {
		t.Fatalf("second ReportCompletion: %v", err)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("expected CompletedAt %v to be kept, got %v", first.CompletedAt, second.CompletedAt)
	}

	// Later ticks must not reopen the chapter.
	p, err := f.progress.ReportProgress(ctx, student, chapter, 10)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if !p.IsCompleted {
		t.Fatal("expected chapter to stay completed")
	}
}

func TestProgressService_ReportCompletion_Strict(t *testing.T) {
	f := newFixture(t, withStrictCompletion())
	ctx := context.Background()
	student := f.student(t, "strict@example.com")
	course := f.course(t, "Go Basics", 1, 100)
	chapter := course.Chapters[0].ID

	if _, err := f.progress.ReportCompletion(ctx, student, chapter); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput with nothing watched, got %v", err)
	}

	if _, err := f.progress.ReportProgress(ctx, student, chapter, 89); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if _, err := f.progress.ReportCompletion(ctx, student, chapter); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput below threshold, got %v", err)
	}

	if _, err := f.progress.ReportProgress(ctx, student, chapter, 90); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	p, err := f.progress.ReportCompletion(ctx, student, chapter)
	if err != nil {
		t.Fatalf("ReportCompletion at threshold: %v", err)
	}
	if !p.IsCompleted {
		t.Fatal("expected chapter completed")
	}
}

func TestProgressService_ReportCompletion_TrustedByDefault(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "trust@example.com")
	course := f.course(t, "Go Basics", 1, 100)

	p, err := f.progress.ReportCompletion(context.Background(), student, course.Chapters[0].ID)
	if err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}
	if !p.IsCompleted || p.WatchedSeconds != 0 {
		t.Fatalf("expected completed with 0 watched seconds, got %+v", p)
	}
}

func TestProgressService_AccessExpires(t *testing.T) {
	f := newFixture(t, withAccessTTL(24*time.Hour))
	ctx := context.Background()
	student := f.student(t, "expiry@example.com")
	course := f.course(t, "Go Basics", 0, 300)
	f.paid(t, student, course.ID)
	chapter := course.Chapters[0].ID

	if _, err := f.progress.ReportProgress(ctx, student, chapter, 10); err != nil {
		t.Fatalf("ReportProgress within validity: %v", err)
	}

	f.advance(25 * time.Hour)
	if _, err := f.progress.ReportProgress(ctx, student, chapter, 20); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied after expiry, got %v", err)
	}
}

func TestProgressService_Resume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "resume@example.com")
	course := f.course(t, "Go Basics", 1, 300)
	chapter := course.Chapters[0].ID

	p, err := f.progress.Resume(ctx, student, chapter)
	if err != nil {
		t.Fatalf("Resume before playback: %v", err)
	}
	if p.WatchedSeconds != 0 || p.IsCompleted {
		t.Fatalf("expected zero snapshot, got %+v", p)
	}

	if _, err := f.progress.ReportProgress(ctx, student, chapter, 77); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	p, err = f.progress.Resume(ctx, student, chapter)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.WatchedSeconds != 77 {
		t.Fatalf("expected 77 watched seconds, got %d", p.WatchedSeconds)
	}

	if _, err := f.progress.Resume(ctx, student, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown chapter, got %v", err)
	}
}

func TestProgressService_Properties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Property Course", 1, 600)
	chapter := course.Chapters[0].ID

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	run := 0
	nextStudent := func() int64 {
		run++
		return f.student(t, fmt.Sprintf("prop%d@example.com", run))
	}

	properties.Property("stored watched seconds is the maximum tick", prop.ForAll(
		func(ticks []int) bool {
			student := nextStudent()
			want := 0
			for _, s := range ticks {
				if _, err := f.progress.ReportProgress(ctx, student, chapter, s); err != nil {
					return false
				}
				want = max(want, s)
			}
			p, err := f.progress.Resume(ctx, student, chapter)
			return err == nil && p.WatchedSeconds == want
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.Property("completion is kept regardless of later ticks", prop.ForAll(
		func(before, after []int) bool {
			student := nextStudent()
			for _, s := range before {
				if _, err := f.progress.ReportProgress(ctx, student, chapter, s); err != nil {
					return false
				}
			}
			first, err := f.progress.ReportCompletion(ctx, student, chapter)
			if err != nil {
				return false
			}
			for _, s := range after {
				if _, err := f.progress.ReportProgress(ctx, student, chapter, s); err != nil {
					return false
				}
			}
			again, err := f.progress.ReportCompletion(ctx, student, chapter)
			if err != nil {
				return false
			}
			return again.IsCompleted && again.CompletedAt.Equal(*first.CompletedAt)
		},
		gen.SliceOf(gen.IntRange(0, 600)),
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.TestingRun(t)
}
