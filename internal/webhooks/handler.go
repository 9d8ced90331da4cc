package webhooks

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
)

// Handler serves webhook registration and delivery history.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the webhook routes to the router group. Webhooks
// belong to accounts, so every route requires one.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks", middleware.RequireUser(), h.create)
	rg.GET("/webhooks", middleware.RequireUser(), h.list)
	rg.DELETE("/webhooks/:id", middleware.RequireUser(), h.delete)
	rg.GET("/webhooks/:id/deliveries", middleware.RequireUser(), h.deliveries)
}

type createRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// createResponse is the only place the secret ever leaves the server. List
// responses omit it, so callers must store it at registration time.
type createResponse struct {
	Webhook
	Secret string `json:"secret"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	hook, err := h.Svc.Create(c.Request.Context(), userID, req.URL, req.Secret, req.Events)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, vErr.Message, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to create webhook", nil)
		return
	}

	respond.JSON(c, http.StatusCreated, createResponse{Webhook: hook, Secret: hook.Secret})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	items, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list webhooks", nil)
		return
	}
	if items == nil {
		items = []Webhook{}
	}
	respond.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Webhook not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to delete webhook", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deliveries(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := intQuery(c, "limit", 0)

	items, err := h.Svc.Deliveries(c.Request.Context(), userID, c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Webhook not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list deliveries", nil)
		return
	}
	if items == nil {
		items = []Delivery{}
	}
	respond.OK(c, gin.H{"items": items, "total": len(items)})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
