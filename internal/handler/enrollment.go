package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

// EnrollmentHandler exposes checkout, cancel and lookup of enrollments.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// HandleCreate starts a checkout priced from the catalog.
// POST /api/enrollments
// Request:  {"courseId":1}
// Response: 201 {"enrollment": {...}} or 409 on duplicate
func (h *EnrollmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		CourseID int64 `json:"courseId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.CourseID <= 0 {
		writeError(w, http.StatusBadRequest, "courseId is required.")
		return
	}

	e, err := h.enrollments.Checkout(r.Context(), user.ID, req.CourseID)
	if err != nil {
		writeServiceError(w, r, "create enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"enrollment": toEnrollmentDTO(e)})
}

// HandleGet returns one enrollment owned by the caller, or any for admins.
// GET /api/enrollments/{id}
func (h *EnrollmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, id, ok := enrollmentRequest(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.GetByID(r.Context(), id, service.RequesterFor(user))
	if err != nil {
		writeServiceError(w, r, "get enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollment": toEnrollmentDTO(e)})
}

// HandleCancel abandons a pending checkout or refunds a paid enrollment.
// POST /api/enrollments/{id}/cancel
// Response: 200 {"enrollment": {...}}, 403 or 409 on guard failure
func (h *EnrollmentHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user, id, ok := enrollmentRequest(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.Cancel(r.Context(), id, service.RequesterFor(user))
	if err != nil {
		writeServiceError(w, r, "cancel enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollment": toEnrollmentDTO(e)})
}

// HandleContinue returns a pending enrollment so the client can resume
// checkout with the payment provider.
// POST /api/enrollments/{id}/continue
func (h *EnrollmentHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	user, id, ok := enrollmentRequest(w, r)
	if !ok {
		return
	}

	e, err := h.enrollments.ContinuePayment(r.Context(), id, service.RequesterFor(user))
	if err != nil {
		writeServiceError(w, r, "continue payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollment": toEnrollmentDTO(e)})
}

func enrollmentRequest(w http.ResponseWriter, r *http.Request) (*domain.User, int64, bool) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return nil, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id.")
		return nil, 0, false
	}
	return user, id, true
}
