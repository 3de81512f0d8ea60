package domain

import (
	"context"
	"time"
)

type CourseLevel string

const (
	LevelBeginner     CourseLevel = "BEGINNER"
	LevelIntermediate CourseLevel = "INTERMEDIATE"
	LevelAdvanced     CourseLevel = "ADVANCED"
)

func (l CourseLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Course is owned by the catalog; the engines only read it.
type Course struct {
	ID          int64
	Title       string
	Description string
	Price       int64 // Minor currency units
	Currency    string
	IsPublished bool
	Level       CourseLevel
	Language    string
	Chapters    []Chapter // Ordered by Position
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chapter is one video of a course. Position is unique within a course.
type Chapter struct {
	ID              int64
	CourseID        int64
	Title           string
	Position        int
	DurationSeconds int
	VideoURL        string
	IsFree          bool
	IsPublished     bool
}

// CourseRepository reads and imports catalog records.
type CourseRepository interface {
	// Upsert inserts or replaces a course and its chapters, keyed by title.
	// Chapter IDs are preserved for positions that already exist so that
	// stored watch progress keeps pointing at the same chapter.
	Upsert(ctx context.Context, course *Course) error
	GetByID(ctx context.Context, id int64) (*Course, error)
	GetChapter(ctx context.Context, id int64) (*Chapter, error)
	ListChapters(ctx context.Context, courseID int64) ([]Chapter, error)
}
