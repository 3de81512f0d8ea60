package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/repository/sqlite"
	"github.com/msomdec/course-market/internal/service"
)

// fixture wires every service over one temp database with a shared clock.
type fixture struct {
	db          *sqlite.DB
	now         time.Time
	progress    *service.ProgressService
	enrollments *service.EnrollmentService
	dashboard   *service.DashboardService
	catalog     *service.CatalogService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy    service.CompletionPolicy
	accessTTL time.Duration
}

func withStrictCompletion() fixtureOption {
	return func(c *fixtureConfig) { c.policy.Strict = true }
}

func withAccessTTL(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.accessTTL = d }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		db:          db,
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		progress:    service.NewProgressService(db.Progress(), db.Courses(), db.Enrollments(), cfg.policy),
		enrollments: service.NewEnrollmentService(db.Enrollments(), db.Courses(), cfg.accessTTL),
		dashboard:   service.NewDashboardService(db.Enrollments(), db.Courses(), db.Progress()),
		catalog:     service.NewCatalogService(db.Courses()),
	}
	clock := func() time.Time { return f.now }
	f.progress.SetClock(clock)
	f.enrollments.SetClock(clock)
	f.dashboard.SetClock(clock)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) student(t *testing.T, email string) int64 {
	t.Helper()
	u := &domain.User{Email: email, DisplayName: email, PasswordHash: "hash", Role: domain.RoleStudent}
	if err := f.db.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create student: %v", err)
	}
	return u.ID
}

// course creates a published course whose first free chapters are free.
func (f *fixture) course(t *testing.T, title string, free int, durations ...int) *domain.Course {
	t.Helper()
	c := &domain.Course{
		Title:       title,
		Price:       4900,
		Currency:    "USD",
		IsPublished: true,
		Level:       domain.LevelBeginner,
		Language:    "en",
	}
	for i, d := range durations {
		c.Chapters = append(c.Chapters, domain.Chapter{
			Title:           fmt.Sprintf("%s %d", title, i+1),
			Position:        i + 1,
			DurationSeconds: d,
			IsFree:          i < free,
			IsPublished:     true,
		})
	}
	if err := f.db.Courses().Upsert(context.Background(), c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

// paid enrolls the student and resolves the payment successfully.
func (f *fixture) paid(t *testing.T, studentID, courseID int64) *domain.Enrollment {
	t.Helper()
	ctx := context.Background()
	e, err := f.enrollments.Checkout(ctx, studentID, courseID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	e, err = f.enrollments.ResolvePayment(ctx, e.ID, domain.PaymentSucceeded, fmt.Sprintf("pay_%d", e.ID))
	if err != nil {
		t.Fatalf("ResolvePayment: %v", err)
	}
	return e
}
