package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/course-market/internal/service"
)

// CourseHandler serves the published catalog.
type CourseHandler struct {
	catalog *service.CatalogService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(catalog *service.CatalogService) *CourseHandler {
	return &CourseHandler{catalog: catalog}
}

// HandleGet returns a published course with its published chapters.
// GET /api/courses/{id}
func (h *CourseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid course id.")
		return
	}

	course, err := h.catalog.GetCourse(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get course", err)
		return
	}
	if !course.IsPublished {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"course": toCourseDTO(course)})
}
