package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/services/health"
	"veriglow-backend/internal/shared/config"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/usage"
)

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, key string, rule middleware.RateLimitRule) (middleware.RateDecision, error) {
	return middleware.RateDecision{Allowed: false, Limit: rule.Limit}, nil
}

func testConfig() config.Config {
	return config.Config{
		Env:              "prod",
		CORSAllowOrigin:  []string{"http://localhost:5173"},
		MaxRequestBytes:  1 << 20,
		RateLimitDefault: 60,
		RateLimitAnalyze: 20,
		RateLimitChat:    10,
		RateLimitLogin:   10,
	}
}

func TestRateLimitGroups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/v1/analyze", "analyze"},
		{http.MethodPost, "/api/v1/analyze/document", "analyze"},
		{http.MethodPost, "/api/v1/analyze/batch", "analyze"},
		{http.MethodPost, "/api/v1/analyze/scrape", "analyze"},
		{http.MethodPost, "/api/v1/chat", "chat"},
		{http.MethodPost, "/api/v1/auth/login", "login"},
		{http.MethodPost, "/api/v1/auth/signup", "login"},
		{http.MethodGet, "/api/v1/analyze/task/abc", ""},
		{http.MethodGet, "/api/v1/history", ""},
		{http.MethodPost, "/api/v1/webhooks", ""},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(tt.method, tt.path, nil)
		if got := rateLimitGroup(c); got != tt.want {
			t.Errorf("rateLimitGroup(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestHealthAndMetricsBypassRateLimit(t *testing.T) {
	router := NewRouter(testConfig(), RouterDeps{
		Health:      health.NewService(),
		Usage:       usage.NewHandler(usage.NewService()),
		RateLimiter: denyAll{},
	})

	for _, path := range []string{"/health", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("GET /api/v1/usage = %d, want 429", resp.Code)
	}
}

func TestDevRoutesOnlyInDev(t *testing.T) {
	usageHandler := usage.NewHandler(usage.NewService())

	prod := NewRouter(testConfig(), RouterDeps{Usage: usageHandler})
	resp := httptest.NewRecorder()
	prod.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/dev/usage/reset", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("prod dev route = %d, want 404", resp.Code)
	}

	devCfg := testConfig()
	devCfg.Env = "dev"
	dev := NewRouter(devCfg, RouterDeps{Usage: usageHandler})
	resp = httptest.NewRecorder()
	dev.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/dev/usage/reset", nil))
	// Route exists in dev but still wants a signed-in user.
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("dev route = %d, want 401", resp.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := NewRouter(testConfig(), RouterDeps{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d, want 404", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	tests := []struct {
		port string
		want string
	}{
		{"", ":8080"},
		{"9090", ":9090"},
		{":7070", ":7070"},
	}
	for _, tt := range tests {
		if got := Addr(tt.port); got != tt.want {
			t.Errorf("Addr(%q) = %q, want %q", tt.port, got, tt.want)
		}
	}
}
