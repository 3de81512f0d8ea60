package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/msomdec/course-market/internal/domain"
)

// CatalogService imports and serves the course catalog. Courses are
// immutable from the engines' point of view; only the import path writes.
type CatalogService struct {
	courses domain.CourseRepository
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(courses domain.CourseRepository) *CatalogService {
	return &CatalogService{courses: courses}
}

type catalogFile struct {
	Courses []catalogCourse `yaml:"courses"`
}

type catalogCourse struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Price       int64            `yaml:"price"`
	Currency    string           `yaml:"currency"`
	Published   bool             `yaml:"published"`
	Level       string           `yaml:"level"`
	Language    string           `yaml:"language"`
	Chapters    []catalogChapter `yaml:"chapters"`
}

type catalogChapter struct {
	Title     string `yaml:"title"`
	Position  int    `yaml:"position"`
	Duration  int    `yaml:"duration"`
	VideoURL  string `yaml:"video_url"`
	Free      bool   `yaml:"free"`
	Published bool   `yaml:"published"`
}

// ImportYAML reads a catalog document and upserts every course in it.
// The whole document is validated before anything is written.
func (s *CatalogService) ImportYAML(ctx context.Context, r io.Reader) ([]domain.Course, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", domain.ErrInvalidInput, err)
	}

	courses := make([]domain.Course, 0, len(doc.Courses))
	var problems *multierror.Error
	for i, c := range doc.Courses {
		course, err := c.toDomain()
		if err != nil {
			problems = multierror.Append(problems, fmt.Errorf("course %d (%q): %w", i+1, c.Title, err))
			continue
		}
		courses = append(courses, course)
	}
	if err := problems.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	for i := range courses {
		if err := s.courses.Upsert(ctx, &courses[i]); err != nil {
			return nil, fmt.Errorf("upsert course %q: %w", courses[i].Title, err)
		}
	}
	return courses, nil
}

func (c catalogCourse) toDomain() (domain.Course, error) {
	if strings.TrimSpace(c.Title) == "" {
		return domain.Course{}, errors.New("title is required")
	}
	if c.Price < 0 {
		return domain.Course{}, errors.New("price must not be negative")
	}

	level := domain.CourseLevel(strings.ToUpper(c.Level))
	if c.Level == "" {
		level = domain.LevelBeginner
	}
	if !level.Valid() {
		return domain.Course{}, fmt.Errorf("unknown level %q", c.Level)
	}

	currency := strings.ToUpper(c.Currency)
	if currency == "" {
		currency = "USD"
	}

	course := domain.Course{
		Title:       c.Title,
		Description: c.Description,
		Price:       c.Price,
		Currency:    currency,
		IsPublished: c.Published,
		Level:       level,
		Language:    c.Language,
	}

	seen := make(map[int]bool, len(c.Chapters))
	for i, ch := range c.Chapters {
		pos := ch.Position
		if pos == 0 {
			pos = i + 1
		}
		if pos < 0 {
			return domain.Course{}, fmt.Errorf("chapter %q: position must not be negative", ch.Title)
		}
		if seen[pos] {
			return domain.Course{}, fmt.Errorf("duplicate chapter position %d", pos)
		}
		if ch.Duration < 0 {
			return domain.Course{}, fmt.Errorf("chapter %d: duration must not be negative", pos)
		}
		seen[pos] = true
		course.Chapters = append(course.Chapters, domain.Chapter{
			Title:           ch.Title,
			Position:        pos,
			DurationSeconds: ch.Duration,
			VideoURL:        ch.VideoURL,
			IsFree:          ch.Free,
			IsPublished:     ch.Published,
		})
	}
	return course, nil
}

// GetCourse returns a course with its chapters.
func (s *CatalogService) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	return s.courses.GetByID(ctx, id)
}
