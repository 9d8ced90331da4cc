package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
)

// Handler exposes the billing endpoints.
type Handler struct {
	Svc           *Service
	WebhookSecret string
	now           func() time.Time
}

// NewHandler wires the handler. webhookSecret may be empty; the webhook
// endpoint then refuses deliveries.
func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{
		Svc:           svc,
		WebhookSecret: webhookSecret,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/billing/plans", h.plans)
	rg.POST("/billing/subscribe", middleware.RequireUser(), h.subscribe)
	rg.GET("/billing/subscription", middleware.RequireUser(), h.current)
	rg.DELETE("/billing/subscription", middleware.RequireUser(), h.cancel)
	rg.POST("/billing/webhook", h.webhook)
}

type plansResponse struct {
	Plans []Plan `json:"plans"`
}

func (h *Handler) plans(c *gin.Context) {
	respond.OK(c, plansResponse{Plans: Plans()})
}

type subscribeRequest struct {
	Plan string `json:"plan"`
}

type subscriptionResponse struct {
	Subscription Subscription `json:"subscription"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	sub, err := h.Svc.Subscribe(c.Request.Context(), userID, req.Plan, c.ClientIP())
	switch {
	case errors.Is(err, ErrUnknownPlan):
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "Unknown plan", nil)
	case errors.Is(err, ErrFreePlan):
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "Cannot subscribe to the free plan", nil)
	case errors.Is(err, ErrProvider):
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable, "Billing provider unavailable", nil)
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to create subscription", nil)
	default:
		respond.OK(c, subscriptionResponse{Subscription: sub})
	}
}

func (h *Handler) current(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sub, err := h.Svc.Current(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "No active subscription", nil)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load subscription", nil)
		return
	}
	respond.OK(c, subscriptionResponse{Subscription: sub})
}

func (h *Handler) cancel(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	err := h.Svc.Cancel(c.Request.Context(), userID, c.ClientIP())
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "No active subscription", nil)
	case errors.Is(err, ErrProvider):
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable, "Billing provider unavailable", nil)
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to cancel subscription", nil)
	default:
		c.Status(http.StatusNoContent)
	}
}

type webhookAck struct {
	Received bool `json:"received"`
}

// webhook accepts provider notifications. The signature gate runs before any
// parsing so unauthenticated garbage never reaches the service.
func (h *Handler) webhook(c *gin.Context) {
	if h.WebhookSecret == "" {
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable, "billing webhooks not configured", nil)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "unreadable body", nil)
		return
	}
	if err := VerifySignature(h.WebhookSecret, c.GetHeader(SignatureHeader), body, h.now()); err != nil {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid webhook signature", nil)
		return
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "invalid webhook payload", nil)
		return
	}
	if ev.Data.ProviderID == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "missing subscription id", nil)
		return
	}

	if err := h.Svc.HandleEvent(c.Request.Context(), ev); err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to process webhook", nil)
		return
	}
	respond.OK(c, webhookAck{Received: true})
}
