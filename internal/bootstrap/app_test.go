package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"veriglow-backend/internal/shared/config"
)

// modelStub answers the generate endpoint with a fixed verdict and reports
// healthy on the tags endpoint.
func modelStub(t *testing.T, label string, scoreReal, scoreFake float64) *httptest.Server {
	t.Helper()
	verdict, err := json.Marshal(map[string]any{
		"label":      label,
		"score_real": scoreReal,
		"score_fake": scoreFake,
	})
	if err != nil {
		t.Fatalf("encode verdict: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"response": string(verdict),
				"done":     true,
			})
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func devConfig(t *testing.T, modelURL string) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		MaxRequestBytes: 1 << 20,

		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,

		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),

		ModelServerURL: modelURL,
		ModelName:      "veriglow-detect",
		ModelTimeout:   5 * time.Second,
		ChatModel:      "veriglow-chat",

		RateLimitDefault: 1000,
		RateLimitAnalyze: 1000,
		RateLimitChat:    1000,
		RateLimitLogin:   1000,

		LockoutMaxAttempts: 5,
		LockoutWindow:      15 * time.Minute,
		LockoutDuration:    15 * time.Minute,
		WorkerConcurrency:  1,
	}
}

func TestBuildDevAnalyzesAsGuest(t *testing.T) {
	model := modelStub(t, "real", 0.93, 0.07)
	app, err := Build(devConfig(t, model.URL))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	payload := []byte(`{"text":"The city council approved the transit budget after a public hearing on Tuesday."}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "guest-build-test")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("POST /analyze = %d, body %s", resp.Code, resp.Body.String())
	}
	var body struct {
		AnalysisID   string  `json:"analysis_id"`
		Verdict      string  `json:"verdict"`
		Confidence   float64 `json:"confidence"`
		ModelVersion string  `json:"model_version"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.AnalysisID == "" {
		t.Fatal("expected analysis_id")
	}
	if body.Verdict != "AUTHENTIC NEWS" {
		t.Fatalf("verdict = %q", body.Verdict)
	}
	if body.ModelVersion != "veriglow-detect" {
		t.Fatalf("model_version = %q", body.ModelVersion)
	}
}

func TestBuildDevSignupThenProfile(t *testing.T) {
	model := modelStub(t, "real", 0.9, 0.1)
	app, err := Build(devConfig(t, model.URL))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	signup := []byte(`{"name":"Vera Stone","email":"vera@example.com","password":"Str0ng!Passw0rd"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(signup))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("signup = %d, body %s", resp.Code, resp.Body.String())
	}
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if auth.AccessToken == "" {
		t.Fatal("expected access token")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("GET /me = %d, body %s", resp.Code, resp.Body.String())
	}
	var profile struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "vera@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
}

func TestBuildHealthReportsModelServer(t *testing.T) {
	model := modelStub(t, "real", 0.9, 0.1)
	app, err := Build(devConfig(t, model.URL))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", resp.Code)
	}
	var report struct {
		Status string          `json:"status"`
		Checks map[string]bool `json:"checks"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != "ok" {
		t.Fatalf("status = %q, checks %v", report.Status, report.Checks)
	}
	if !report.Checks["model_server"] {
		t.Fatal("model_server check failed against stub")
	}
}

func TestBuildRejectsRedisQueueWithoutRedis(t *testing.T) {
	model := modelStub(t, "real", 0.9, 0.1)
	cfg := devConfig(t, model.URL)
	cfg.QueueBackend = "redis"

	if _, err := Build(cfg); err == nil {
		t.Fatal("expected build error for redis queue without redis")
	}
}
