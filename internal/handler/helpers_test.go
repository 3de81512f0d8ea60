package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/course-market/internal/domain"
	"github.com/msomdec/course-market/internal/handler"
	"github.com/msomdec/course-market/internal/repository/sqlite"
	"github.com/msomdec/course-market/internal/service"
)

const (
	testJWTSecret     = "test-secret-for-handler-tests-0123456789"
	testWebhookSecret = "whsec_test"
)

type testApp struct {
	db   *sqlite.DB
	auth *service.AuthService
	srv  *httptest.Server
}

type appOption func(*handler.Dependencies)

func withProgressLimit(rate, burst float64) appOption {
	return func(d *handler.Dependencies) {
		d.ProgressLimiter = service.NewTokenBucket(context.Background(), rate, burst)
	}
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	return service.NewAuthService(newTestDB(t).Users(), testJWTSecret, 4)
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	db := newTestDB(t)
	auth := service.NewAuthService(db.Users(), testJWTSecret, 4)

	deps := handler.Dependencies{
		DB:            db,
		Auth:          auth,
		Catalog:       service.NewCatalogService(db.Courses()),
		Progress:      service.NewProgressService(db.Progress(), db.Courses(), db.Enrollments(), service.CompletionPolicy{}),
		Enrollments:   service.NewEnrollmentService(db.Enrollments(), db.Courses(), 0),
		Dashboard:     service.NewDashboardService(db.Enrollments(), db.Courses(), db.Progress()),
		WebhookSecret: testWebhookSecret,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)
	srv := httptest.NewServer(handler.RequestLogger(handler.SecurityHeaders(mux)))
	t.Cleanup(srv.Close)

	return &testApp{db: db, auth: auth, srv: srv}
}

// seedCourse creates a published course; the first free chapters are free.
func (a *testApp) seedCourse(t *testing.T, title string, free int, durations ...int) *domain.Course {
	t.Helper()
	c := &domain.Course{
		Title:       title,
		Price:       2500,
		Currency:    "EUR",
		IsPublished: true,
		Level:       domain.LevelBeginner,
		Language:    "en",
	}
	for i, d := range durations {
		c.Chapters = append(c.Chapters, domain.Chapter{
			Title:           fmt.Sprintf("Chapter %d", i+1),
			Position:        i + 1,
			DurationSeconds: d,
			IsFree:          i < free,
			IsPublished:     true,
		})
	}
	if err := a.db.Courses().Upsert(context.Background(), c); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

// client registers and logs in a user, returning a cookie-carrying client.
func (a *testApp) client(t *testing.T, email string) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	c := &apiClient{t: t, base: a.srv.URL, http: &http.Client{Jar: jar}}

	resp := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "displayName": email, "password": "password123", "confirmPassword": "password123",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}

	var login struct {
		User handler.UserDTO `json:"user"`
	}
	resp = c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "password123",
	}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	c.userID = login.User.ID
	return c
}

type apiClient struct {
	t      *testing.T
	base   string
	http   *http.Client
	userID int64
}

// do sends body as JSON and decodes the response into out when non-nil.
func (c *apiClient) do(method, path string, body, out any) *http.Response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *apiClient) send(req *http.Request, out any) *http.Response {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp
}

// webhook posts a signed payment event.
func (a *testApp) webhook(t *testing.T, event map[string]any, secret string) *http.Response {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/payments/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(handler.SignatureHeader, handler.SignPayload([]byte(secret), body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	resp.Body.Close()
	return resp
}
