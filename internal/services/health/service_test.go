package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

type stubModel struct {
	healthy bool
}

func (s stubModel) Healthy(ctx context.Context) bool { return s.healthy }

func TestStatusWithoutDependencies(t *testing.T) {
	svc := NewService()

	report := svc.Status(context.Background())
	if report.Status != "ok" {
		t.Fatalf("status = %q, want ok", report.Status)
	}
	for name, ok := range report.Checks {
		if !ok {
			t.Fatalf("check %s = false, want true", name)
		}
	}
	if len(report.Checks) != 3 {
		t.Fatalf("checks = %d, want 3", len(report.Checks))
	}
}

func TestStatusDegradesOnModelFailure(t *testing.T) {
	svc := NewService()
	svc.Model = stubModel{healthy: false}

	report := svc.Status(context.Background())
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}
	if report.Checks["model_server"] {
		t.Fatal("model_server check = true, want false")
	}
	if !report.Checks["database"] || !report.Checks["cache"] {
		t.Fatalf("unrelated checks flipped: %+v", report.Checks)
	}
}

func TestStatusPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService()
	svc.DB = db

	mock.ExpectPing()
	report := svc.Status(context.Background())
	if !report.Checks["database"] || report.Status != "ok" {
		t.Fatalf("healthy ping report = %+v", report)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	report = svc.Status(context.Background())
	if report.Checks["database"] {
		t.Fatal("database check = true after failed ping")
	}
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHandlerAlwaysAnswers200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService()
	svc.Model = stubModel{healthy: false}

	router := gin.New()
	router.GET("/health", svc.Handler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var report Report
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != "degraded" {
		t.Fatalf("body status = %q, want degraded", report.Status)
	}
	if report.Checks["model_server"] {
		t.Fatal("model_server check = true in body")
	}
}
