package compliance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/billing"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
	"veriglow-backend/internal/users"
)

// Handler serves the account data rights endpoints.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/account/export", middleware.RequireUser(), h.export)
	rg.DELETE("/account", middleware.RequireUser(), h.delete)
}

type exportResponse struct {
	Bundle
	Artifacts *Artifacts `json:"artifacts,omitempty"`
}

func (h *Handler) export(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	bundle, artifacts, err := h.Svc.Export(c.Request.Context(), userID, c.ClientIP())
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Account not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to export account data", nil)
		return
	}
	respond.OK(c, exportResponse{Bundle: bundle, Artifacts: artifacts})
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	err := h.Svc.DeleteAccount(c.Request.Context(), userID, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Account not found", nil)
		case errors.Is(err, billing.ErrProvider):
			respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable, "Billing provider unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to delete account", nil)
		}
		return
	}
	c.Status(http.StatusNoContent)
}
