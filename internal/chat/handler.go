package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/respond"
)

const (
	assistantName = "VeriGlow Assistant"
	healthProbe   = 2 * time.Second
)

// Handler exposes the assistant endpoints. Both are open to guests; the
// assistant stores nothing about the caller.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
	rg.GET("/chat/health", h.health)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}
	respond.OK(c, chatResponse{Reply: h.Svc.Reply(c.Request.Context(), req.Message)})
}

type healthResponse struct {
	Status    string   `json:"status"`
	Assistant string   `json:"assistant"`
	Models    []string `json:"models,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// health reports whether the model server answers. It always returns 200 so
// the extension can render the outage instead of choking on it.
func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbe)
	defer cancel()

	models, err := h.Svc.Gen.ListModels(ctx)
	if err != nil {
		respond.OK(c, healthResponse{
			Status:    "error",
			Assistant: assistantName,
			Message:   "Model server is not available",
		})
		return
	}
	respond.OK(c, healthResponse{
		Status:    "ok",
		Assistant: assistantName + " (Ollama)",
		Models:    models,
	})
}
