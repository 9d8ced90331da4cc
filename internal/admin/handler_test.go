package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/admin"
	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/users"
)

type testApp struct {
	handler  *admin.Handler
	users    *users.Service
	analyses *analyses.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	usersSvc := users.NewService(users.NewMemoryRepo(), users.DefaultLockoutPolicy())
	analysesSvc := analyses.NewService(analyses.NewMemoryRepo())
	svc := admin.NewService(usersSvc, analysesSvc, admin.NewMemoryFlagRepo())
	svc.Audit = audit.NewService(audit.NewMemoryRepo())
	return &testApp{handler: admin.NewHandler(svc), users: usersSvc, analyses: analysesSvc}
}

func (a *testApp) register(t *testing.T, name, email string) users.User {
	t.Helper()
	u, err := a.users.Register(context.Background(), name, email, "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (a *testApp) seedAnalysis(t *testing.T, id string) {
	t.Helper()
	err := a.analyses.Repo.Create(context.Background(), analyses.Analysis{
		ID:         id,
		UserID:     "owner",
		Query:      "seeded submission",
		Verdict:    analyses.VerdictQuestionable,
		Confidence: 88,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed analysis %s: %v", id, err)
	}
}

func newAdminRouter(t *testing.T, h *admin.Handler, userID, role string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userId", userID)
			c.Set("userRole", role)
			c.Set("isGuest", false)
		}
		c.Next()
	})
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAdminRoutesEnforceRoles(t *testing.T) {
	app := newTestApp(t)

	guest := newAdminRouter(t, app.handler, "", "")
	if w := doJSON(t, guest, http.MethodGet, "/api/v1/admin/users", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("guest admin list status = %d, want 401", w.Code)
	}

	user := newAdminRouter(t, app.handler, "u1", auth.RoleUser)
	for _, path := range []string{"/api/v1/admin/users", "/api/v1/admin/stats", "/api/v1/admin/model", "/api/v1/admin/audit"} {
		if w := doJSON(t, user, http.MethodGet, path, ""); w.Code != http.StatusForbidden {
			t.Fatalf("user GET %s status = %d, want 403", path, w.Code)
		}
	}
	if w := doJSON(t, user, http.MethodGet, "/api/v1/moderation/flags", ""); w.Code != http.StatusForbidden {
		t.Fatalf("user queue status = %d, want 403", w.Code)
	}

	moderator := newAdminRouter(t, app.handler, "m1", auth.RoleModerator)
	if w := doJSON(t, moderator, http.MethodGet, "/api/v1/admin/users", ""); w.Code != http.StatusForbidden {
		t.Fatalf("moderator admin list status = %d, want 403", w.Code)
	}
	if w := doJSON(t, moderator, http.MethodGet, "/api/v1/moderation/flags", ""); w.Code != http.StatusOK {
		t.Fatalf("moderator queue status = %d, want 200", w.Code)
	}

	adm := newAdminRouter(t, app.handler, "a1", auth.RoleAdmin)
	if w := doJSON(t, adm, http.MethodGet, "/api/v1/moderation/flags", ""); w.Code != http.StatusOK {
		t.Fatalf("admin queue status = %d, want 200", w.Code)
	}
}

func TestAdminUserEndpoints(t *testing.T) {
	app := newTestApp(t)
	target := app.register(t, "Dana", "dana@example.com")
	app.register(t, "Eli", "eli@example.com")
	router := newAdminRouter(t, app.handler, "admin-1", auth.RoleAdmin)

	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/users", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", w.Code, w.Body.String())
	}
	var list struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Items) != 2 {
		t.Fatalf("list = %d items, total %d", len(list.Items), list.Total)
	}
	for _, item := range list.Items {
		if _, leaked := item["password_hash"]; leaked {
			t.Fatal("password hash leaked in admin listing")
		}
	}

	path := fmt.Sprintf("/api/v1/admin/users/%s/role", target.ID)
	if w := doJSON(t, router, http.MethodPut, path, `{"role":"moderator"}`); w.Code != http.StatusOK {
		t.Fatalf("set role status = %d, body %s", w.Code, w.Body.String())
	}
	got, err := app.users.GetByID(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Role != auth.RoleModerator {
		t.Fatalf("role = %q, want %q", got.Role, auth.RoleModerator)
	}

	if w := doJSON(t, router, http.MethodPut, path, `{"role":"superuser"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad role status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPut, path, `{"role": 42}`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPut, "/api/v1/admin/users/missing/role", `{"role":"moderator"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", w.Code)
	}

	banPath := fmt.Sprintf("/api/v1/admin/users/%s/ban", target.ID)
	if w := doJSON(t, router, http.MethodPut, banPath, `{"banned":true}`); w.Code != http.StatusOK {
		t.Fatalf("ban status = %d, body %s", w.Code, w.Body.String())
	}
	got, _ = app.users.GetByID(context.Background(), target.ID)
	if !got.Banned {
		t.Fatal("user not banned after PUT ban")
	}
	if w := doJSON(t, router, http.MethodPut, banPath, `{"banned":false}`); w.Code != http.StatusOK {
		t.Fatalf("unban status = %d", w.Code)
	}
	got, _ = app.users.GetByID(context.Background(), target.ID)
	if got.Banned {
		t.Fatal("user still banned after PUT ban false")
	}
}

func TestAdminStatsAndAuditEndpoints(t *testing.T) {
	app := newTestApp(t)
	target := app.register(t, "Dana", "dana@example.com")
	app.seedAnalysis(t, "a1")
	app.seedAnalysis(t, "a2")
	router := newAdminRouter(t, app.handler, "admin-1", auth.RoleAdmin)

	path := fmt.Sprintf("/api/v1/admin/users/%s/role", target.ID)
	if w := doJSON(t, router, http.MethodPut, path, `{"role":"moderator"}`); w.Code != http.StatusOK {
		t.Fatalf("set role status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", w.Code, w.Body.String())
	}
	var stats struct {
		Analyses analyses.Stats `json:"analyses"`
		Cache    map[string]any `json:"cache"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Analyses.TotalAnalyses != 2 {
		t.Fatalf("total analyses = %d, want 2", stats.Analyses.TotalAnalyses)
	}
	if _, ok := stats.Cache["hits"]; !ok {
		t.Fatal("stats payload missing cache hits")
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/audit?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d, body %s", w.Code, w.Body.String())
	}
	var log struct {
		Items []audit.Event `json:"items"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &log); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if log.Total != 1 || len(log.Items) != 1 {
		t.Fatalf("audit log = %+v, want one event", log)
	}
	if log.Items[0].Action != audit.ActionDataModification || log.Items[0].ResourceID != target.ID {
		t.Fatalf("audit event = %+v", log.Items[0])
	}
}

func TestAdminModelReportEndpoint(t *testing.T) {
	app := newTestApp(t)
	router := newAdminRouter(t, app.handler, "admin-1", auth.RoleAdmin)

	// No tracker wired yet.
	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/model", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("model report without tracker status = %d", w.Code)
	}

	tracker := classifier.NewMemoryTrackerRepo()
	rec := classifier.PredictionRecord{
		ID: "p1", Prediction: classifier.CodeReal, Confidence: 0.9,
		ModelVersion: "veriglow-detect", CreatedAt: time.Now().UTC(),
	}
	if err := tracker.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert prediction: %v", err)
	}
	app.handler.Svc.Tracker = &classifier.Tracker{Repo: tracker}

	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/model?version=veriglow-detect&days=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("model report status = %d, body %s", w.Code, w.Body.String())
	}
	var report struct {
		Accuracy struct {
			TotalPredictions int64 `json:"total_predictions"`
		} `json:"accuracy"`
		Confidence struct {
			Total int64 `json:"total_predictions"`
		} `json:"confidence_distribution"`
		Volume struct {
			Total int64 `json:"total_predictions"`
		} `json:"prediction_volume"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Accuracy.TotalPredictions != 1 || report.Confidence.Total != 1 || report.Volume.Total != 1 {
		t.Fatalf("report totals = %+v, want the seeded prediction everywhere", report)
	}
}

func TestModerationEndpoints(t *testing.T) {
	app := newTestApp(t)
	app.seedAnalysis(t, "a1")
	reporter := newAdminRouter(t, app.handler, "u-reporter", auth.RoleUser)
	moderator := newAdminRouter(t, app.handler, "mod-1", auth.RoleModerator)

	w := doJSON(t, reporter, http.MethodPost, "/api/v1/moderation/flags", `{"analysis_id":"a1","reason":"misleading headline"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("flag status = %d, body %s", w.Code, w.Body.String())
	}
	var flag admin.Flag
	if err := json.Unmarshal(w.Body.Bytes(), &flag); err != nil {
		t.Fatalf("decode flag: %v", err)
	}
	if flag.ID == "" || flag.Status != admin.FlagOpen || flag.ReporterID != "u-reporter" {
		t.Fatalf("flag = %+v", flag)
	}

	if w := doJSON(t, reporter, http.MethodPost, "/api/v1/moderation/flags", `{"analysis_id":"a1","reason":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty reason status = %d", w.Code)
	}
	if w := doJSON(t, reporter, http.MethodPost, "/api/v1/moderation/flags", `{"analysis_id":"missing","reason":"spam"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown analysis status = %d", w.Code)
	}

	w = doJSON(t, moderator, http.MethodGet, "/api/v1/moderation/flags", "")
	if w.Code != http.StatusOK {
		t.Fatalf("queue status = %d", w.Code)
	}
	var queue struct {
		Items []admin.Flag `json:"items"`
		Total int          `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if queue.Total != 1 || queue.Items[0].ID != flag.ID {
		t.Fatalf("queue = %+v", queue)
	}

	resolvePath := fmt.Sprintf("/api/v1/moderation/flags/%s/resolve", flag.ID)
	w = doJSON(t, moderator, http.MethodPost, resolvePath, `{"action":"removed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", w.Code, w.Body.String())
	}
	var resolved admin.Flag
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode resolved: %v", err)
	}
	if resolved.Status != admin.FlagResolved || resolved.Resolution != "removed" || resolved.ResolvedBy != "mod-1" {
		t.Fatalf("resolved = %+v", resolved)
	}

	w = doJSON(t, moderator, http.MethodGet, "/api/v1/moderation/flags?status=open", "")
	if w.Code != http.StatusOK {
		t.Fatalf("open queue status = %d", w.Code)
	}
	var open struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &open); err != nil {
		t.Fatalf("decode open queue: %v", err)
	}
	if open.Total != 0 {
		t.Fatalf("open queue total = %d, want 0", open.Total)
	}

	if w := doJSON(t, moderator, http.MethodGet, "/api/v1/moderation/flags?status=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus status filter = %d", w.Code)
	}
	if w := doJSON(t, moderator, http.MethodPost, "/api/v1/moderation/flags/missing/resolve", `{"action":"removed"}`); w.Code != http.StatusNotFound {
		t.Fatalf("resolve unknown status = %d", w.Code)
	}
}
