package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
)

// Handler serves the async analysis endpoints.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the async routes to the router group. All of them
// need an account; guests use the synchronous endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze/batch", middleware.RequireUser(), h.batch)
	rg.POST("/analyze/scrape", middleware.RequireUser(), h.scrape)
	rg.GET("/analyze/task/:id", middleware.RequireUser(), h.status)
}

type batchRequest struct {
	Texts    []string `json:"texts"`
	Language string   `json:"language"`
}

type scrapeRequest struct {
	URL             string `json:"url"`
	NotificationURL string `json:"notification_url"`
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Total   int    `json:"total,omitempty"`
}

func (h *Handler) batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	t, err := h.Svc.SubmitBatch(c.Request.Context(), userID, req.Texts, req.Language, c.ClientIP())
	if err != nil {
		h.respondSubmitError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, submitResponse{
		TaskID:  t.ID,
		Status:  "submitted",
		Message: fmt.Sprintf("Batch analysis job submitted for %d texts", t.Total),
		Total:   t.Total,
	})
}

func (h *Handler) scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	t, err := h.Svc.SubmitScrape(c.Request.Context(), userID, req.URL, req.NotificationURL, c.ClientIP())
	if err != nil {
		h.respondSubmitError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, submitResponse{
		TaskID:  t.ID,
		Status:  "submitted",
		Message: fmt.Sprintf("Scrape and analyze job submitted for %s", t.Payload.URL),
	})
}

func (h *Handler) respondSubmitError(c *gin.Context, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, vErr.Message, nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to submit task", nil)
}

type statusResponse struct {
	TaskID  string          `json:"task_id"`
	State   string          `json:"state"`
	Status  string          `json:"status,omitempty"`
	Current int             `json:"current,omitempty"`
	Total   int             `json:"total,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	admin := auth.RoleAtLeast(middleware.UserRoleFromContext(c), auth.RoleAdmin)

	t, err := h.Svc.Get(c.Request.Context(), c.Param("id"), userID, admin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load task", nil)
		return
	}

	respond.OK(c, toStatusResponse(t))
}

func toStatusResponse(t Task) statusResponse {
	out := statusResponse{TaskID: t.ID, State: t.State}

	switch t.State {
	case StatePending:
		out.Status = t.Status
		if out.Status == "" {
			out.Status = "Task is waiting to be processed"
		}
	case StateProgress:
		out.Status = t.Status
		if out.Status == "" {
			out.Status = "Processing..."
		}
		out.Current = t.Current
		out.Total = t.Total
	case StateSuccess:
		out.Status = "Task completed successfully"
		out.Result = t.Result
	case StateFailure:
		out.Status = "Task failed"
		out.Result = errorResult(t.Error)
	default:
		out.Status = t.State
	}
	return out
}

func errorResult(msg string) json.RawMessage {
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return nil
	}
	return payload
}
