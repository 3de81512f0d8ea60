package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/course-market/internal/domain"
)

// writeServiceError maps a service error onto a JSON error response. Errors
// outside the domain taxonomy are logged under action, tagged with the
// request ID, and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "You do not have access to this chapter.")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "You are not allowed to do that.")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrDuplicateEnrollment):
		writeError(w, http.StatusConflict, "You already have an active enrollment for this course.")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error(action, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}
