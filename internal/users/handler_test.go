package users_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/users"
)

func newMeRouter(t *testing.T, repo users.Repo, identity func(c *gin.Context)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := users.NewService(repo, users.DefaultLockoutPolicy())
	handler := users.NewHandler(svc)

	router := gin.New()
	if identity != nil {
		router.Use(func(c *gin.Context) {
			identity(c)
			c.Next()
		})
	}
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	return router
}

func TestMeReturnsProfile(t *testing.T) {
	repo := users.NewMemoryRepo()
	seeded := users.User{
		ID:    "user-1",
		Email: "ada@example.com",
		Name:  "Ada Lovelace",
		Role:  "user",
		Plan:  "pro",
	}
	if err := repo.Create(context.Background(), seeded); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	router := newMeRouter(t, repo, func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Set("userEmail", "ada@example.com")
		c.Set("isGuest", false)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
		Plan  string `json:"plan"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "user-1" || body.Email != "ada@example.com" || body.Plan != "pro" {
		t.Fatalf("unexpected profile: %+v", body)
	}
}

func TestMeRejectsGuests(t *testing.T) {
	router := newMeRouter(t, users.NewMemoryRepo(), func(c *gin.Context) {
		c.Set("userId", "guest:1.2.3.4")
		c.Set("isGuest", true)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestMeFallsBackToTokenClaims(t *testing.T) {
	router := newMeRouter(t, users.NewMemoryRepo(), func(c *gin.Context) {
		c.Set("userId", "google-123")
		c.Set("userEmail", "new@example.com")
		c.Set("userName", "New User")
		c.Set("userRole", "user")
		c.Set("isGuest", false)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Plan  string `json:"plan"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "google-123" || body.Email != "new@example.com" {
		t.Fatalf("unexpected fallback profile: %+v", body)
	}
	if body.Plan != users.DefaultPlan {
		t.Fatalf("expected default plan, got %q", body.Plan)
	}
}
