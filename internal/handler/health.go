package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/msomdec/course-market/internal/domain"
)

// HealthHandler reports liveness and whether the store answers.
type HealthHandler struct {
	db domain.Database
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db domain.Database) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealthz responds with 200 and {"status":"ok"} while the database is
// reachable, 503 otherwise.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("health check ping", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
