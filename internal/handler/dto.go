package handler

import (
	"time"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}

// EnrollmentDTO is the JSON representation of an enrollment.
type EnrollmentDTO struct {
	ID         int64   `json:"id"`
	StudentID  int64   `json:"studentId"`
	CourseID   int64   `json:"courseId"`
	Amount     int64   `json:"amount"`
	Currency   string  `json:"currency"`
	PaymentID  *string `json:"paymentId"`
	Status     string  `json:"status"`
	ValidUntil *string `json:"validUntil"`
	IsActive   bool    `json:"isActive"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

func toEnrollmentDTO(e *domain.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:         e.ID,
		StudentID:  e.StudentID,
		CourseID:   e.CourseID,
		Amount:     e.Amount,
		Currency:   e.Currency,
		PaymentID:  e.PaymentID,
		Status:     string(e.Status),
		ValidUntil: formatOptionalTime(e.ValidUntil),
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
	}
}

// ProgressDTO is the JSON representation of one chapter's watch progress.
type ProgressDTO struct {
	ChapterID      int64   `json:"chapterId"`
	WatchedSeconds int     `json:"watchedSeconds"`
	IsCompleted    bool    `json:"isCompleted"`
	LastWatchedAt  *string `json:"lastWatchedAt"`
	CompletedAt    *string `json:"completedAt"`
}

func toProgressDTO(p *domain.WatchProgress) ProgressDTO {
	dto := ProgressDTO{
		ChapterID:      p.ChapterID,
		WatchedSeconds: p.WatchedSeconds,
		IsCompleted:    p.IsCompleted,
		CompletedAt:    formatOptionalTime(p.CompletedAt),
	}
	if !p.LastWatchedAt.IsZero() {
		dto.LastWatchedAt = formatOptionalTime(&p.LastWatchedAt)
	}
	return dto
}

// LearningProgressDTO is how far a student got through a course.
type LearningProgressDTO struct {
	CompletedChapters int `json:"completedChapters"`
	TotalChapters     int `json:"totalChapters"`
	Percent           int `json:"percent"`
}

// CourseSummaryDTO is the slice of a course shown on the dashboard.
type CourseSummaryDTO struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Level    string `json:"level"`
	Language string `json:"language"`
}

// ChapterDTO is a published chapter as students see it.
type ChapterDTO struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Position        int    `json:"position"`
	DurationSeconds int    `json:"durationSeconds"`
	IsFree          bool   `json:"isFree"`
}

// CourseDTO is a published course with its published chapters in order.
type CourseDTO struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       int64        `json:"price"`
	Currency    string       `json:"currency"`
	Level       string       `json:"level"`
	Language    string       `json:"language"`
	Chapters    []ChapterDTO `json:"chapters"`
}

func toCourseDTO(c *domain.Course) CourseDTO {
	dto := CourseDTO{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Price:       c.Price,
		Currency:    c.Currency,
		Level:       string(c.Level),
		Language:    c.Language,
		Chapters:    []ChapterDTO{},
	}
	for _, ch := range c.Chapters {
		if !ch.IsPublished {
			continue
		}
		dto.Chapters = append(dto.Chapters, ChapterDTO{
			ID:              ch.ID,
			Title:           ch.Title,
			Position:        ch.Position,
			DurationSeconds: ch.DurationSeconds,
			IsFree:          ch.IsFree,
		})
	}
	return dto
}

// EnrollmentViewDTO is one dashboard row.
type EnrollmentViewDTO struct {
	Enrollment EnrollmentDTO       `json:"enrollment"`
	Course     CourseSummaryDTO    `json:"course"`
	Progress   LearningProgressDTO `json:"progress"`
}

func toEnrollmentViewDTOs(views []service.EnrollmentView) []EnrollmentViewDTO {
	dtos := make([]EnrollmentViewDTO, len(views))
	for i := range views {
		v := &views[i]
		dtos[i] = EnrollmentViewDTO{
			Enrollment: toEnrollmentDTO(&v.Enrollment),
			Course: CourseSummaryDTO{
				ID:       v.Course.ID,
				Title:    v.Course.Title,
				Level:    string(v.Course.Level),
				Language: v.Course.Language,
			},
			Progress: LearningProgressDTO(v.Progress),
		}
	}
	return dtos
}

// EnrollmentGroupsDTO carries the access-granted bucket as "completed".
type EnrollmentGroupsDTO struct {
	Completed []EnrollmentViewDTO `json:"completed"`
	Pending   []EnrollmentViewDTO `json:"pending"`
	Failed    []EnrollmentViewDTO `json:"failed"`
	Expired   []EnrollmentViewDTO `json:"expired"`
}

// DashboardStatsDTO is the JSON representation of dashboard counters.
type DashboardStatsDTO struct {
	Total      int `json:"total"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// DashboardDTO is the response of GET /api/enrollments.
type DashboardDTO struct {
	Groups EnrollmentGroupsDTO `json:"groups"`
	Stats  DashboardStatsDTO   `json:"stats"`
}

func toDashboardDTO(d service.Dashboard) DashboardDTO {
	return DashboardDTO{
		Groups: EnrollmentGroupsDTO{
			Completed: toEnrollmentViewDTOs(d.Groups.Granted),
			Pending:   toEnrollmentViewDTOs(d.Groups.Pending),
			Failed:    toEnrollmentViewDTOs(d.Groups.Failed),
			Expired:   toEnrollmentViewDTOs(d.Groups.Expired),
		},
		Stats: DashboardStatsDTO(d.Stats),
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
