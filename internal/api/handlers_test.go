package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"devdash/internal/analytics"
	"devdash/internal/apperror"
	"devdash/internal/auth"
	"devdash/internal/config"
	"devdash/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUpstream satisfies analytics.Upstream with canned responses.
type fakeUpstream struct {
	repos       []models.Repository
	reposErr    error
	events      []models.Event
	commits     []models.CommitSearchItem
	searchTotal int
	searchErr   error
}

func (f *fakeUpstream) ListAllRepos(ctx context.Context, token string) ([]models.Repository, error) {
	return f.repos, f.reposErr
}

func (f *fakeUpstream) RepoLanguages(ctx context.Context, token, owner, repo string) (map[string]int64, error) {
	return nil, nil
}

func (f *fakeUpstream) ListAllEvents(ctx context.Context, token, username string) ([]models.Event, error) {
	return f.events, nil
}

func (f *fakeUpstream) SearchCommits(ctx context.Context, token, username, since, until string, page, perPage int) ([]models.CommitSearchItem, int, map[string]string, error) {
	return nil, f.searchTotal, nil, f.searchErr
}

func (f *fakeUpstream) SearchAllCommits(ctx context.Context, token, username, since, until string) ([]models.CommitSearchItem, error) {
	return f.commits, nil
}

// memCache satisfies analytics.MetricCache in memory.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(ctx context.Context, userID int64, key string) ([]byte, bool, error) {
	data, ok := m.data[fmt.Sprintf("%d/%s", userID, key)]
	return data, ok, nil
}

func (m *memCache) Set(ctx context.Context, userID int64, key string, payload []byte, ttl time.Duration) error {
	m.data[fmt.Sprintf("%d/%s", userID, key)] = payload
	return nil
}

func (m *memCache) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	prefix := fmt.Sprintf("%d/", userID)
	var deleted int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			deleted++
		}
	}
	return deleted, nil
}

func newTestServer(upstream *fakeUpstream, cache *memCache) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Server{
		log: log,
		cfg: config.Config{
			FrontendURL: "http://localhost:3000",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		tokens:    auth.NewTokenService("test-secret-at-least-16"),
		analytics: analytics.NewService(log, upstream, cache),
	}
}

func testSessionUser() *models.User {
	return &models.User{ID: 1, GitHubID: 99, Username: "octocat", AccessToken: "gho_secret_token"}
}

// asUser builds a router that injects the user the way authMiddleware would.
func asUser(user *models.User, method, path string, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	})
	r.Handle(method, path, handler)
	return r
}

func TestGinModeFor(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", gin.DebugMode},
		{"DEBUG", gin.DebugMode},
		{" debug ", gin.DebugMode},
		{"info", gin.ReleaseMode},
		{"warn", gin.ReleaseMode},
		{"", gin.ReleaseMode},
	}

	for _, tt := range tests {
		if got := ginModeFor(tt.level); got != tt.want {
			t.Errorf("ginModeFor(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNewServerKeepsTestMode(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{LogLevel: "info", FrontendURL: "http://localhost:3000"}
	svc := analytics.NewService(log, &fakeUpstream{}, newMemCache())

	s := NewServer(log, nil, nil, cfg, nil, auth.NewTokenService("test-secret-at-least-16"), nil, nil, svc)

	if gin.Mode() != gin.TestMode {
		t.Errorf("expected TestMode preserved, got %q", gin.Mode())
	}
	if s.Handler() == nil {
		t.Error("expected a usable handler")
	}
}

func TestRespondErrorMapping(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperror.Validation("days", "must be between 1 and 90"), http.StatusBadRequest, "invalid_parameter"},
		{"bad credential", apperror.UpstreamStatus("/user/repos", 401), http.StatusBadGateway, "github_unauthorized"},
		{"upstream down", apperror.Upstream("/user/repos", errors.New("connect refused")), http.StatusBadGateway, "upstream_unavailable"},
		{"unauthorized", apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"not found", apperror.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			s.respondError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, body.Error.Code)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	upstream := &fakeUpstream{
		repos: []models.Repository{
			{StargazersCount: 60, ForksCount: 10},
			{StargazersCount: 40, ForksCount: 15, Private: true},
		},
		searchTotal: 42,
	}
	s := newTestServer(upstream, newMemCache())
	r := asUser(testSessionUser(), http.MethodGet, "/api/analytics/stats", s.getStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats models.UserStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if stats.TotalStars != 100 || stats.TotalForks != 25 || stats.PublicRepos != 1 || stats.PrivateRepos != 1 || stats.TotalCommits != 42 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGetStatsUpstreamAuthFailure(t *testing.T) {
	upstream := &fakeUpstream{reposErr: apperror.UpstreamStatus("/user/repos", 401)}
	s := newTestServer(upstream, newMemCache())
	r := asUser(testSessionUser(), http.MethodGet, "/api/analytics/stats", s.getStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/stats", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "github_unauthorized") {
		t.Errorf("expected github_unauthorized code, got %s", w.Body.String())
	}
}

func TestGetContributionsDefaultWindow(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())
	r := asUser(testSessionUser(), http.MethodGet, "/api/analytics/contributions", s.getContributions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/contributions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var points []models.ContributionPoint
	if err := json.Unmarshal(w.Body.Bytes(), &points); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(points) != analytics.DefaultDays {
		t.Errorf("expected %d points by default, got %d", analytics.DefaultDays, len(points))
	}
}

func TestGetContributionsBadDays(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())
	r := asUser(testSessionUser(), http.MethodGet, "/api/analytics/contributions", s.getContributions)

	for _, days := range []string{"abc", "0", "91", "-1"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/contributions?days="+days, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("days=%s: expected 400, got %d", days, w.Code)
		}
		if !strings.Contains(w.Body.String(), "invalid_parameter") {
			t.Errorf("days=%s: expected invalid_parameter code, got %s", days, w.Body.String())
		}
	}
}

func TestGetRepositoriesBadLimit(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())
	r := asUser(testSessionUser(), http.MethodGet, "/api/analytics/repositories", s.getRepositories)

	for _, limit := range []string{"abc", "0", "101"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/repositories?limit="+limit, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", limit, w.Code)
		}
	}
}

func TestGetMeNeverLeaksAccessToken(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())
	user := testSessionUser()
	r := asUser(user, http.MethodGet, "/api/users/me", s.getMe)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), user.AccessToken) {
		t.Error("response body contains the github access token")
	}
	if !strings.Contains(w.Body.String(), `"username":"octocat"`) {
		t.Errorf("expected username in body, got %s", w.Body.String())
	}
}

func TestRefreshData(t *testing.T) {
	upstream := &fakeUpstream{searchTotal: 5}
	cache := newMemCache()
	s := newTestServer(upstream, cache)
	user := testSessionUser()

	// warm two cache entries first
	statsRouter := asUser(user, http.MethodGet, "/stats", s.getStats)
	statsRouter.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))
	heatRouter := asUser(user, http.MethodGet, "/heatmap", s.getHeatmap)
	heatRouter.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/heatmap", nil))

	r := asUser(user, http.MethodPost, "/api/users/me/refresh", s.refreshData)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/users/me/refresh", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Status  string `json:"status"`
		Deleted int64  `json:"deleted"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Status != "success" || body.Deleted != 2 {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Message != "Cache cleared. 2 entries deleted." {
		t.Errorf("unexpected message: %q", body.Message)
	}
}

func TestAuthMiddlewareRejectsMissingCookie(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.Use(s.authMiddleware())
	r.GET("/protected", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.Use(s.authMiddleware())
	r.GET("/protected", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: "not.a.jwt"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthStatusUnauthenticated(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.GET("/api/auth/status", s.authStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status endpoint must not 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"authenticated":false`) {
		t.Errorf("expected authenticated=false, got %s", w.Body.String())
	}
}

func TestGithubCallbackRejectsMissingParams(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.GET("/api/auth/callback", s.githubCallback)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_request") {
		t.Errorf("expected invalid_request code, got %s", w.Body.String())
	}
}

func TestGithubCallbackRejectsStateMismatch(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.GET("/api/auth/callback", s.githubCallback)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=expected", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "different"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_state") {
		t.Errorf("expected invalid_state code, got %s", w.Body.String())
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.POST("/api/auth/logout", s.logout)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	cleared := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == authCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the auth cookie to be expired")
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(&fakeUpstream{}, newMemCache())

	r := gin.New()
	r.Use(s.corsMiddleware())
	r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("expected origin echoed, got %q", got)
		}
		if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("expected credentials allowed, got %q", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://evil.example")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no CORS header, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("expected 204 for preflight, got %d", w.Code)
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"tabs\tand\nnewlines\r", "tabs\tand\nnewlines\r"},
		{"null\x00byte", "nullbyte"},
		{"escape\x1bseq", "escapeseq"},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
