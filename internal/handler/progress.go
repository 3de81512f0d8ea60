package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

// ProgressHandler receives player ticks and completion signals.
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// HandleReport records a playback tick, a completion signal, or both.
// Clients may retry freely.
// POST /api/progress
// Request:  {"chapterId":1,"watchedSeconds":95,"isCompleted":false}
// Response: {"progress": {...}}
func (h *ProgressHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		ChapterID      int64 `json:"chapterId"`
		WatchedSeconds *int  `json:"watchedSeconds"`
		IsCompleted    *bool `json:"isCompleted"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.ChapterID <= 0 {
		writeError(w, http.StatusBadRequest, "chapterId is required.")
		return
	}
	completed := req.IsCompleted != nil && *req.IsCompleted
	if req.WatchedSeconds == nil && !completed {
		writeError(w, http.StatusBadRequest, "watchedSeconds or isCompleted is required.")
		return
	}

	var (
		p   *domain.WatchProgress
		err error
	)
	if req.WatchedSeconds != nil {
		p, err = h.progress.ReportProgress(r.Context(), user.ID, req.ChapterID, *req.WatchedSeconds)
		if err != nil {
			writeServiceError(w, r, "report progress", err)
			return
		}
	}
	if completed {
		p, err = h.progress.ReportCompletion(r.Context(), user.ID, req.ChapterID)
		if err != nil {
			writeServiceError(w, r, "report completion", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"progress": toProgressDTO(p)})
}

// HandleResume returns the stored playback position for a chapter.
// GET /api/progress/{chapterId}
func (h *ProgressHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	chapterID, err := strconv.ParseInt(r.PathValue("chapterId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chapter id.")
		return
	}

	p, err := h.progress.Resume(r.Context(), user.ID, chapterID)
	if err != nil {
		writeServiceError(w, r, "resume progress", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": toProgressDTO(p)})
}
