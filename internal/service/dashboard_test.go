package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

func chapters(free int, published ...bool) []domain.Chapter {
	out := make([]domain.Chapter, len(published))
	for i, p := range published {
		out[i] = domain.Chapter{ID: int64(i + 1), Position: i + 1, IsFree: i < free, IsPublished: p}
	}
	return out
}

func completedOn(ids ...int64) []domain.WatchProgress {
	out := make([]domain.WatchProgress, len(ids))
	for i, id := range ids {
		out[i] = domain.WatchProgress{ChapterID: id, IsCompleted: true}
	}
	return out
}

func TestComputeLearningProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	granted := &domain.Enrollment{Status: domain.StatusCompleted, IsActive: true}
	pending := &domain.Enrollment{Status: domain.StatusPending, IsActive: true}
	lapsed := &domain.Enrollment{Status: domain.StatusCompleted, IsActive: true, ValidUntil: &expired}

	tests := []struct {
		name       string
		enrollment *domain.Enrollment
		chapters   []domain.Chapter
		watched    []domain.WatchProgress
		want       domain.LearningProgress
	}{
		{
			name:       "one of four",
			enrollment: granted,
			chapters:   chapters(0, true, true, true, true),
			watched:    completedOn(1),
			want:       domain.LearningProgress{CompletedChapters: 1, TotalChapters: 4, Percent: 25},
		},
		{
			name:       "pending counts free chapters only",
			enrollment: pending,
			chapters:   chapters(1, true, true, true, true),
			watched:    completedOn(1, 2),
			want:       domain.LearningProgress{CompletedChapters: 1, TotalChapters: 1, Percent: 100},
		},
		{
			name:       "expired access counts free chapters only",
			enrollment: lapsed,
			chapters:   chapters(2, true, true, true, true),
			watched:    completedOn(1, 3),
			want:       domain.LearningProgress{CompletedChapters: 1, TotalChapters: 2, Percent: 50},
		},
		{
			name:       "unpublished chapters are ignored",
			enrollment: granted,
			chapters:   chapters(0, true, false, true),
			watched:    completedOn(1, 2),
			want:       domain.LearningProgress{CompletedChapters: 1, TotalChapters: 2, Percent: 50},
		},
		{
			name:       "rounds to nearest",
			enrollment: granted,
			chapters:   chapters(0, true, true, true),
			watched:    completedOn(1, 2),
			want:       domain.LearningProgress{CompletedChapters: 2, TotalChapters: 3, Percent: 67},
		},
		{
			name:       "no eligible chapters",
			enrollment: pending,
			chapters:   chapters(0, true, true),
			watched:    completedOn(1),
			want:       domain.LearningProgress{},
		},
		{
			name:       "incomplete rows do not count",
			enrollment: granted,
			chapters:   chapters(0, true, true),
			watched:    []domain.WatchProgress{{ChapterID: 1, WatchedSeconds: 500}},
			want:       domain.LearningProgress{CompletedChapters: 0, TotalChapters: 2, Percent: 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := service.ComputeLearningProgress(tc.enrollment, tc.chapters, tc.watched, now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDashboardService_CompletingAChapterMovesStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "dash@example.com")
	course := f.course(t, "Four Parts", 0, 100, 100, 100, 100)
	e := f.paid(t, student, course.ID)

	before, err := f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, service.DashboardStats{Total: 1}, before)

	_, err = f.progress.ReportCompletion(ctx, student, course.Chapters[0].ID)
	require.NoError(t, err)

	lp, err := f.dashboard.EnrollmentProgress(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 25, lp.Percent)

	after, err := f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, before.InProgress+1, after.InProgress)
	assert.Equal(t, 0, after.Completed)

	for _, ch := range course.Chapters[1:] {
		_, err := f.progress.ReportCompletion(ctx, student, ch.ID)
		require.NoError(t, err)
	}
	done, err := f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, service.DashboardStats{Total: 1, InProgress: 0, Completed: 1}, done)
}

func TestDashboardService_GroupEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "groups@example.com")

	paid := f.course(t, "Paid", 0, 100)
	f.paid(t, student, paid.ID)

	waiting := f.course(t, "Waiting", 0, 100)
	_, err := f.enrollments.Checkout(ctx, student, waiting.ID)
	require.NoError(t, err)

	declined := f.course(t, "Declined", 0, 100)
	d, err := f.enrollments.Checkout(ctx, student, declined.ID)
	require.NoError(t, err)
	_, err = f.enrollments.ResolvePayment(ctx, d.ID, domain.PaymentFailed, "")
	require.NoError(t, err)

	refunded := f.course(t, "Refunded", 0, 100)
	r := f.paid(t, student, refunded.ID)
	_, err = f.enrollments.Cancel(ctx, r.ID, service.Requester{UserID: student})
	require.NoError(t, err)

	groups, err := f.dashboard.GroupEnrollments(ctx, student)
	require.NoError(t, err)

	titles := func(views []service.EnrollmentView) []string {
		out := make([]string, len(views))
		for i, v := range views {
			out[i] = v.Course.Title
		}
		return out
	}
	assert.Equal(t, []string{"Paid"}, titles(groups.Granted))
	assert.Equal(t, []string{"Waiting"}, titles(groups.Pending))
	assert.Equal(t, []string{"Declined"}, titles(groups.Failed))

	stats, err := f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestDashboardService_ExpiredAccessLeavesStats(t *testing.T) {
	f := newFixture(t, withAccessTTL(24*time.Hour))
	ctx := context.Background()
	student := f.student(t, "lapsed@example.com")
	course := f.course(t, "Two Parts", 1, 100, 100)
	f.paid(t, student, course.ID)

	_, err := f.progress.ReportCompletion(ctx, student, course.Chapters[0].ID)
	require.NoError(t, err)

	stats, err := f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, service.DashboardStats{Total: 1, InProgress: 1}, stats)

	f.advance(48 * time.Hour)
	stats, err = f.dashboard.DashboardStats(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, service.DashboardStats{}, stats)

	groups, err := f.dashboard.GroupEnrollments(ctx, student)
	require.NoError(t, err)
	assert.Empty(t, groups.Granted)
	require.Len(t, groups.Expired, 1)
	assert.Equal(t, "Two Parts", groups.Expired[0].Course.Title)

	_, err = f.enrollments.Checkout(ctx, student, course.ID)
	require.NoError(t, err)
	groups, err = f.dashboard.GroupEnrollments(ctx, student)
	require.NoError(t, err)
	assert.Len(t, groups.Expired, 1)
	assert.Len(t, groups.Pending, 1)
}

func TestDashboardService_Dashboard_Tabs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "tabs@example.com")

	started := f.course(t, "Started", 0, 100, 100)
	f.paid(t, student, started.ID)
	_, err := f.progress.ReportCompletion(ctx, student, started.Chapters[0].ID)
	require.NoError(t, err)

	untouched := f.course(t, "Untouched", 0, 100)
	f.paid(t, student, untouched.ID)

	finished := f.course(t, "Finished", 0, 100)
	f.paid(t, student, finished.ID)
	_, err = f.progress.ReportCompletion(ctx, student, finished.Chapters[0].ID)
	require.NoError(t, err)

	waiting := f.course(t, "Waiting", 0, 100)
	_, err = f.enrollments.Checkout(ctx, student, waiting.ID)
	require.NoError(t, err)

	titles := func(views []service.EnrollmentView) []string {
		out := make([]string, len(views))
		for i, v := range views {
			out[i] = v.Course.Title
		}
		return out
	}

	all, err := f.dashboard.Dashboard(ctx, student, service.DashboardQuery{Tab: service.TabAll, Sort: service.SortTitleAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Finished", "Started", "Untouched"}, titles(all.Groups.Granted))
	assert.Len(t, all.Groups.Pending, 1)

	d, err := f.dashboard.Dashboard(ctx, student, service.DashboardQuery{Tab: service.TabInProgress})
	require.NoError(t, err)
	assert.Equal(t, []string{"Started"}, titles(d.Groups.Granted))
	assert.Empty(t, d.Groups.Pending)
	assert.Equal(t, service.DashboardStats{Total: 3, InProgress: 1, Completed: 1}, d.Stats)

	d, err = f.dashboard.Dashboard(ctx, student, service.DashboardQuery{Tab: service.TabPendingPayment})
	require.NoError(t, err)
	assert.Empty(t, d.Groups.Granted)
	assert.Equal(t, []string{"Waiting"}, titles(d.Groups.Pending))
}

func TestDashboardService_Dashboard_SearchAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "query@example.com")

	for _, title := range []string{"advanced go", "Go Basics", "Rust Intro"} {
		c := f.course(t, title, 0, 100, 100)
		f.paid(t, student, c.ID)
	}

	d, err := f.dashboard.Dashboard(ctx, student, service.DashboardQuery{Search: "GO", Sort: service.SortTitleAsc})
	require.NoError(t, err)
	require.Len(t, d.Groups.Granted, 2)
	assert.Equal(t, "advanced go", d.Groups.Granted[0].Course.Title)
	assert.Equal(t, "Go Basics", d.Groups.Granted[1].Course.Title)
	assert.Equal(t, 3, d.Stats.Total, "stats ignore the search filter")
}

func TestSortEnrollments(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	view := func(id int64, title string, percent int, updated time.Duration) service.EnrollmentView {
		return service.EnrollmentView{
			Enrollment: domain.Enrollment{ID: id, UpdatedAt: base.Add(updated)},
			Course:     domain.Course{Title: title},
			Progress:   domain.LearningProgress{Percent: percent},
		}
	}
	views := []service.EnrollmentView{
		view(1, "beta", 50, time.Hour),
		view(2, "Alpha", 10, 3*time.Hour),
		view(3, "Ételier", 50, 2*time.Hour),
		view(4, "alpha", 90, 0),
	}
	ids := func(vs []service.EnrollmentView) []int64 {
		out := make([]int64, len(vs))
		for i, v := range vs {
			out[i] = v.Enrollment.ID
		}
		return out
	}

	tests := []struct {
		order service.SortOrder
		want  []int64
	}{
		{service.SortLastUpdated, []int64{2, 3, 1, 4}},
		{service.SortTitleAsc, []int64{4, 2, 1, 3}},
		{service.SortTitleDesc, []int64{3, 1, 2, 4}},
		{service.SortProgressAsc, []int64{2, 1, 3, 4}},
		{service.SortProgressDesc, []int64{4, 1, 3, 2}},
	}
	for _, tc := range tests {
		t.Run(string(tc.order), func(t *testing.T) {
			got := service.SortEnrollments(views, tc.order)
			assert.Equal(t, tc.want, ids(got))
		})
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, ids(views), "input must not be reordered")
}

func TestFilterEnrollments(t *testing.T) {
	views := []service.EnrollmentView{
		{Course: domain.Course{Title: "Go Basics"}},
		{Course: domain.Course{Title: "Advanced GO"}},
		{Course: domain.Course{Title: "Rust"}},
	}

	assert.Len(t, service.FilterEnrollments(views, "go"), 2)
	assert.Len(t, service.FilterEnrollments(views, "  "), 3)
	assert.Empty(t, service.FilterEnrollments(views, "python"))
}

func TestParseSortOrder(t *testing.T) {
	order, err := service.ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, service.SortLastUpdated, order)

	order, err = service.ParseSortOrder("progress-desc")
	require.NoError(t, err)
	assert.Equal(t, service.SortProgressDesc, order)

	_, err = service.ParseSortOrder("random")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseTab(t *testing.T) {
	tab, err := service.ParseTab("")
	require.NoError(t, err)
	assert.Equal(t, service.TabAll, tab)

	tab, err = service.ParseTab("in-progress")
	require.NoError(t, err)
	assert.Equal(t, service.TabInProgress, tab)

	_, err = service.ParseTab("archived")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
