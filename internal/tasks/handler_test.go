package tasks_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/tasks"
)

const articleText = "Researchers at the national laboratory said on Wednesday that the field trial met its enrollment target and that full results are expected to be published early next year."

func newTestHandler() *tasks.Handler {
	analysesSvc := analyses.NewService(analyses.NewMemoryRepo())
	analysesSvc.Model = classifier.Heuristic{}

	// No queue configured, so jobs run inline in a goroutine.
	svc := tasks.NewService(tasks.NewMemoryRepo(), analysesSvc)
	return tasks.NewHandler(svc)
}

func newTasksRouter(t *testing.T, h *tasks.Handler, userID, role string, guest bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userId", userID)
		}
		if role != "" {
			c.Set("userRole", role)
		}
		c.Set("isGuest", guest)
		c.Next()
	})
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func getPath(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type submitPayload struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Total   int    `json:"total"`
}

type statusPayload struct {
	TaskID  string          `json:"task_id"`
	State   string          `json:"state"`
	Status  string          `json:"status"`
	Current int             `json:"current"`
	Total   int             `json:"total"`
	Result  json.RawMessage `json:"result"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func waitForSuccess(t *testing.T, router *gin.Engine, taskID string) statusPayload {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		w := getPath(t, router, "/api/v1/analyze/task/"+taskID)
		if w.Code != http.StatusOK {
			t.Fatalf("status code = %d, body %s", w.Code, w.Body.String())
		}
		var st statusPayload
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		switch st.State {
		case tasks.StateSuccess:
			return st
		case tasks.StateFailure:
			t.Fatalf("task failed: %s", string(st.Result))
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task did not finish in time")
	return statusPayload{}
}

func TestBatchEndpointRunsInline(t *testing.T) {
	h := newTestHandler()
	router := newTasksRouter(t, h, "user-1", "user", false)

	w := postJSON(t, router, "/api/v1/analyze/batch", gin.H{
		"texts":    []string{articleText, articleText + " Officials declined further comment."},
		"language": "en",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}

	var sub submitPayload
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if sub.Status != "submitted" || sub.Total != 2 || sub.TaskID == "" {
		t.Fatalf("submit payload = %+v", sub)
	}
	if sub.Message != "Batch analysis job submitted for 2 texts" {
		t.Fatalf("message = %q", sub.Message)
	}

	st := waitForSuccess(t, router, sub.TaskID)
	if st.Status != "Task completed successfully" {
		t.Fatalf("status line = %q", st.Status)
	}

	var result tasks.BatchResult
	if err := json.Unmarshal(st.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Total != 2 || result.Successful != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestBatchEndpointValidation(t *testing.T) {
	h := newTestHandler()
	router := newTasksRouter(t, h, "user-1", "user", false)

	w := postJSON(t, router, "/api/v1/analyze/batch", gin.H{"texts": []string{"hi"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Error.Message != "Text 1 is too short (minimum 5 characters)" {
		t.Fatalf("message = %q", env.Error.Message)
	}

	w = postJSON(t, router, "/api/v1/analyze/batch", gin.H{"texts": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty texts status = %d", w.Code)
	}
}

func TestScrapeEndpointRejectsInvalidURL(t *testing.T) {
	h := newTestHandler()
	router := newTasksRouter(t, h, "user-1", "user", false)

	w := postJSON(t, router, "/api/v1/analyze/scrape", gin.H{"url": "example.com/story"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Error.Message != "Invalid URL" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestTaskEndpointsRequireAccount(t *testing.T) {
	h := newTestHandler()
	router := newTasksRouter(t, h, "", "", true)

	if w := postJSON(t, router, "/api/v1/analyze/batch", gin.H{"texts": []string{articleText}}); w.Code != http.StatusUnauthorized {
		t.Fatalf("guest batch status = %d", w.Code)
	}
	if w := getPath(t, router, "/api/v1/analyze/task/some-id"); w.Code != http.StatusUnauthorized {
		t.Fatalf("guest status code = %d", w.Code)
	}
}

func TestTaskStatusHiddenFromStrangers(t *testing.T) {
	h := newTestHandler()
	owner := newTasksRouter(t, h, "user-1", "user", false)
	stranger := newTasksRouter(t, h, "user-2", "user", false)
	admin := newTasksRouter(t, h, "admin-1", "admin", false)

	w := postJSON(t, owner, "/api/v1/analyze/batch", gin.H{"texts": []string{articleText}, "language": "en"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d", w.Code)
	}
	var sub submitPayload
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	if w := getPath(t, stranger, "/api/v1/analyze/task/"+sub.TaskID); w.Code != http.StatusNotFound {
		t.Fatalf("stranger status = %d", w.Code)
	}
	if w := getPath(t, admin, "/api/v1/analyze/task/"+sub.TaskID); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	if w := getPath(t, owner, "/api/v1/analyze/task/unknown-task"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown task status = %d", w.Code)
	}
}
