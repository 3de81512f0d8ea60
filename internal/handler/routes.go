package handler

import (
	"net/http"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/service"
)

// Dependencies groups what the HTTP layer needs from the rest of the app.
type Dependencies struct {
	DB              domain.Database
	Auth            *service.AuthService
	Catalog         *service.CatalogService
	Progress        *service.ProgressService
	Enrollments     *service.EnrollmentService
	Dashboard       *service.DashboardService
	ProgressLimiter *service.TokenBucket
	// WebhookSecret enables POST /api/payments/webhook when set.
	WebhookSecret string
	CookieSecure  bool
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := NewHealthHandler(deps.DB)
	authH := NewAuthHandler(deps.Auth, deps.CookieSecure)
	courseH := NewCourseHandler(deps.Catalog)
	progressH := NewProgressHandler(deps.Progress)
	enrollmentH := NewEnrollmentHandler(deps.Enrollments)
	dashboardH := NewDashboardHandler(deps.Dashboard)

	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(deps.Auth, h)
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/auth/register", authH.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", authH.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", authH.HandleLogout)
	mux.Handle("GET /api/auth/me", protected(authH.HandleMe))

	mux.HandleFunc("GET /api/courses/{id}", courseH.HandleGet)

	var report http.Handler = http.HandlerFunc(progressH.HandleReport)
	if deps.ProgressLimiter != nil {
		report = RateLimitByUser(deps.ProgressLimiter, report)
	}
	mux.Handle("POST /api/progress", RequireAuth(deps.Auth, report))
	mux.Handle("GET /api/progress/{chapterId}", protected(progressH.HandleResume))

	mux.Handle("POST /api/enrollments", protected(enrollmentH.HandleCreate))
	mux.Handle("GET /api/enrollments", protected(dashboardH.HandleList))
	mux.Handle("GET /api/enrollments/{id}", protected(enrollmentH.HandleGet))
	mux.Handle("POST /api/enrollments/{id}/cancel", protected(enrollmentH.HandleCancel))
	mux.Handle("POST /api/enrollments/{id}/continue", protected(enrollmentH.HandleContinue))

	mux.Handle("GET /dashboard/stream", protected(dashboardH.HandleStream))

	if deps.WebhookSecret != "" {
		webhook := NewPaymentWebhookHandler(deps.Enrollments, deps.WebhookSecret)
		mux.HandleFunc("POST /api/payments/webhook", webhook.HandlePaymentEvent)
	}
}
