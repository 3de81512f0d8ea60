package service

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/msomdec/course-market/internal/domain"
)

// EnrollmentView is an enrollment joined with its course and the student's
// learning progress through it.
type EnrollmentView struct {
	Enrollment domain.Enrollment
	Course     domain.Course
	Progress   domain.LearningProgress
}

// EnrollmentGroups partitions a student's enrollments by access status.
// REFUNDED enrollments appear in none of the groups.
type EnrollmentGroups struct {
	Granted []EnrollmentView // COMPLETED: payment done, access granted
	Pending []EnrollmentView
	Failed  []EnrollmentView
	Expired []EnrollmentView // COMPLETED, access window closed
}

// DashboardStats counts access-granted enrollments by learning progress.
type DashboardStats struct {
	Total      int
	InProgress int
	Completed  int
}

// Dashboard is the grouped, filtered and sorted view plus stats.
type Dashboard struct {
	Groups EnrollmentGroups
	Stats  DashboardStats
}

type SortOrder string

const (
	SortLastUpdated  SortOrder = "last-updated"
	SortTitleAsc     SortOrder = "title-asc"
	SortTitleDesc    SortOrder = "title-desc"
	SortProgressAsc  SortOrder = "progress-asc"
	SortProgressDesc SortOrder = "progress-desc"
)

// ParseSortOrder validates a sort parameter; empty means last-updated.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return SortLastUpdated, nil
	case SortLastUpdated, SortTitleAsc, SortTitleDesc, SortProgressAsc, SortProgressDesc:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown sort order %q", domain.ErrInvalidInput, s)
}

// Tab selects which groups the dashboard lists.
type Tab string

const (
	TabAll            Tab = "all-courses"
	TabInProgress     Tab = "in-progress"
	TabPendingPayment Tab = "pending-payment"
	TabFailed         Tab = "failed"
)

// ParseTab validates a tab parameter; empty means all courses.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case "":
		return TabAll, nil
	case TabAll, TabInProgress, TabPendingPayment, TabFailed:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown tab %q", domain.ErrInvalidInput, s)
}

// DashboardQuery narrows and orders the dashboard.
type DashboardQuery struct {
	Search string
	Sort   SortOrder
	Tab    Tab
}

// DashboardService is the read-side aggregation over enrollments and watch
// progress. It keeps no state and recomputes on every call.
type DashboardService struct {
	enrollments domain.EnrollmentRepository
	courses     domain.CourseRepository
	progress    domain.ProgressRepository
	now         func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(enrollments domain.EnrollmentRepository, courses domain.CourseRepository, progress domain.ProgressRepository) *DashboardService {
	return &DashboardService{
		enrollments: enrollments,
		courses:     courses,
		progress:    progress,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *DashboardService) SetClock(now func() time.Time) { s.now = now }

// EnrollmentProgress computes the learning progress for one enrollment.
func (s *DashboardService) EnrollmentProgress(ctx context.Context, enrollment *domain.Enrollment) (domain.LearningProgress, error) {
	course, err := s.courses.GetByID(ctx, enrollment.CourseID)
	if err != nil {
		return domain.LearningProgress{}, fmt.Errorf("get course: %w", err)
	}
	watched, err := s.progress.ListByStudentAndCourse(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return domain.LearningProgress{}, fmt.Errorf("list progress: %w", err)
	}
	return ComputeLearningProgress(enrollment, course.Chapters, watched, s.now()), nil
}

// GroupEnrollments partitions the student's enrollments by access status.
func (s *DashboardService) GroupEnrollments(ctx context.Context, studentID int64) (EnrollmentGroups, error) {
	views, err := s.views(ctx, studentID)
	if err != nil {
		return EnrollmentGroups{}, err
	}
	return groupViews(views, s.now()), nil
}

// DashboardStats counts the student's access-granted enrollments.
func (s *DashboardService) DashboardStats(ctx context.Context, studentID int64) (DashboardStats, error) {
	views, err := s.views(ctx, studentID)
	if err != nil {
		return DashboardStats{}, err
	}
	return statsFor(views, s.now()), nil
}

// Dashboard returns groups and stats from a single read, with the tab,
// search and ordering applied to the groups. Stats ignore all three.
func (s *DashboardService) Dashboard(ctx context.Context, studentID int64, q DashboardQuery) (Dashboard, error) {
	views, err := s.views(ctx, studentID)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	groups := SelectTab(groupViews(views, now), q.Tab)
	arrange := func(v []EnrollmentView) []EnrollmentView {
		return SortEnrollments(FilterEnrollments(v, q.Search), q.Sort)
	}
	return Dashboard{
		Groups: EnrollmentGroups{
			Granted: arrange(groups.Granted),
			Pending: arrange(groups.Pending),
			Failed:  arrange(groups.Failed),
			Expired: arrange(groups.Expired),
		},
		Stats: statsFor(views, now),
	}, nil
}

// SelectTab keeps the groups a tab shows. The in-progress tab is the
// access-granted group narrowed to courses started but not finished.
func SelectTab(groups EnrollmentGroups, tab Tab) EnrollmentGroups {
	switch tab {
	case TabInProgress:
		return EnrollmentGroups{Granted: lo.Filter(groups.Granted, func(v EnrollmentView, _ int) bool {
			return inProgress(v.Progress)
		})}
	case TabPendingPayment:
		return EnrollmentGroups{Pending: groups.Pending}
	case TabFailed:
		return EnrollmentGroups{Failed: groups.Failed}
	}
	return groups
}

func inProgress(p domain.LearningProgress) bool {
	return p.Percent > 0 && p.Percent < 100
}

func (s *DashboardService) views(ctx context.Context, studentID int64) ([]EnrollmentView, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	now := s.now()
	courses := make(map[int64]*domain.Course)
	var views []EnrollmentView
	for i := range enrollments {
		e := &enrollments[i]
		if e.Status == domain.StatusRefunded {
			continue
		}

		course, ok := courses[e.CourseID]
		if !ok {
			course, err = s.courses.GetByID(ctx, e.CourseID)
			if err != nil {
				return nil, fmt.Errorf("get course %d: %w", e.CourseID, err)
			}
			courses[e.CourseID] = course
		}

		watched, err := s.progress.ListByStudentAndCourse(ctx, studentID, e.CourseID)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}

		views = append(views, EnrollmentView{
			Enrollment: *e,
			Course:     *course,
			Progress:   ComputeLearningProgress(e, course.Chapters, watched, now),
		})
	}
	return views, nil
}

// ComputeLearningProgress counts completed chapters among the chapters the
// enrollment makes eligible: published free chapters always, published paid
// chapters only while the enrollment grants access.
func ComputeLearningProgress(e *domain.Enrollment, chapters []domain.Chapter, watched []domain.WatchProgress, now time.Time) domain.LearningProgress {
	granted := e.GrantsAccess(now)
	eligible := lo.Filter(chapters, func(ch domain.Chapter, _ int) bool {
		return ch.IsPublished && (ch.IsFree || granted)
	})

	done := lo.SliceToMap(
		lo.Filter(watched, func(p domain.WatchProgress, _ int) bool { return p.IsCompleted }),
		func(p domain.WatchProgress) (int64, bool) { return p.ChapterID, true },
	)
	completed := lo.CountBy(eligible, func(ch domain.Chapter) bool { return done[ch.ID] })

	lp := domain.LearningProgress{CompletedChapters: completed, TotalChapters: len(eligible)}
	if lp.TotalChapters > 0 {
		lp.Percent = int(math.Round(100 * float64(completed) / float64(lp.TotalChapters)))
	}
	return lp
}

func groupViews(views []EnrollmentView, now time.Time) EnrollmentGroups {
	byStatus := lo.GroupBy(views, func(v EnrollmentView) domain.AccessStatus { return v.Enrollment.Status })
	granted, expired := lo.FilterReject(byStatus[domain.StatusCompleted], func(v EnrollmentView, _ int) bool {
		return v.Enrollment.GrantsAccess(now)
	})
	return EnrollmentGroups{
		Granted: granted,
		Pending: byStatus[domain.StatusPending],
		Failed:  byStatus[domain.StatusFailed],
		Expired: expired,
	}
}

// statsFor counts only enrollments that grant access at now.
func statsFor(views []EnrollmentView, now time.Time) DashboardStats {
	granted := lo.Filter(views, func(v EnrollmentView, _ int) bool {
		return v.Enrollment.GrantsAccess(now)
	})
	return DashboardStats{
		Total:      len(granted),
		InProgress: lo.CountBy(granted, func(v EnrollmentView) bool { return inProgress(v.Progress) }),
		Completed:  lo.CountBy(granted, func(v EnrollmentView) bool { return v.Progress.Percent == 100 }),
	}
}

// FilterEnrollments keeps views whose course title contains search,
// ignoring case. An empty search keeps everything.
func FilterEnrollments(views []EnrollmentView, search string) []EnrollmentView {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return views
	}
	return lo.Filter(views, func(v EnrollmentView, _ int) bool {
		return strings.Contains(strings.ToLower(v.Course.Title), search)
	})
}

// SortEnrollments returns a stably sorted copy of views.
func SortEnrollments(views []EnrollmentView, order SortOrder) []EnrollmentView {
	sorted := slices.Clone(views)

	var compare func(a, b EnrollmentView) int
	switch order {
	case SortTitleAsc, SortTitleDesc:
		col := collate.New(language.Und)
		compare = func(a, b EnrollmentView) int { return col.CompareString(a.Course.Title, b.Course.Title) }
		if order == SortTitleDesc {
			compare = func(a, b EnrollmentView) int { return col.CompareString(b.Course.Title, a.Course.Title) }
		}
	case SortProgressAsc:
		compare = func(a, b EnrollmentView) int { return cmp.Compare(a.Progress.Percent, b.Progress.Percent) }
	case SortProgressDesc:
		compare = func(a, b EnrollmentView) int { return cmp.Compare(b.Progress.Percent, a.Progress.Percent) }
	case SortLastUpdated, "":
		compare = func(a, b EnrollmentView) int { return b.Enrollment.UpdatedAt.Compare(a.Enrollment.UpdatedAt) }
	default:
		return sorted
	}

	slices.SortStableFunc(sorted, compare)
	return sorted
}
