package handler

import (
	"net/http"
	"strconv"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/course-market/internal/service"
	"github.com/msomdec/course-market/internal/view"
)

// DashboardHandler serves the aggregated enrollment view as JSON and as a
// datastar SSE stream.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// HandleList returns grouped enrollments with learning progress and stats.
// GET /api/enrollments?studentId=&sort=&q=&tab=
// A studentId other than the caller's own requires the admin role.
func (h *DashboardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	studentID := user.ID
	if v := r.URL.Query().Get("studentId"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid studentId.")
			return
		}
		if parsed != user.ID && !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "You are not allowed to do that.")
			return
		}
		studentID = parsed
	}

	sort, err := service.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tab, err := service.ParseTab(r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.dashboard.Dashboard(r.Context(), studentID, service.DashboardQuery{
		Search: r.URL.Query().Get("q"),
		Sort:   sort,
		Tab:    tab,
	})
	if err != nil {
		writeServiceError(w, r, "build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// dashboardSignals are the datastar signals the dashboard page sends and
// receives.
type dashboardSignals struct {
	Sort       string `json:"sort"`
	Search     string `json:"search"`
	Tab        string `json:"tab"`
	Total      int    `json:"total"`
	InProgress int    `json:"inProgress"`
	Completed  int    `json:"completed"`
}

// HandleStream patches the stats signals and the enrollment list fragment
// for the caller's dashboard.
// GET /dashboard/stream
func (h *DashboardHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid signals.")
		return
	}
	sort, err := service.ParseSortOrder(signals.Sort)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tab, err := service.ParseTab(signals.Tab)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.dashboard.Dashboard(r.Context(), user.ID, service.DashboardQuery{
		Search: signals.Search,
		Sort:   sort,
		Tab:    tab,
	})
	if err != nil {
		writeServiceError(w, r, "build dashboard stream", err)
		return
	}

	sse := datastar.NewSSE(w, r)

	signals.Sort = string(sort)
	signals.Tab = string(tab)
	signals.Total = d.Stats.Total
	signals.InProgress = d.Stats.InProgress
	signals.Completed = d.Stats.Completed
	if err := sse.MarshalAndPatchSignals(signals); err != nil {
		return
	}

	sse.PatchElementTempl(
		view.EnrollmentGroups(d.Groups),
		datastar.WithSelectorID(view.EnrollmentGroupsID),
	)
}
