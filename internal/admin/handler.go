package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
	"veriglow-backend/internal/users"
)

// Handler serves the admin console and the moderation queue.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the operator routes. Admin endpoints need the
// admin role; the moderation queue is open to moderators, and filing a flag
// only needs an account.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admins := middleware.RequireRole(auth.RoleAdmin)
	rg.GET("/admin/users", admins, h.listUsers)
	rg.PUT("/admin/users/:id/role", admins, h.setRole)
	rg.PUT("/admin/users/:id/ban", admins, h.setBanned)
	rg.GET("/admin/stats", admins, h.stats)
	rg.GET("/admin/model", admins, h.modelReport)
	rg.GET("/admin/audit", admins, h.auditLog)

	moderators := middleware.RequireRole(auth.RoleModerator)
	rg.POST("/moderation/flags", middleware.RequireUser(), h.flag)
	rg.GET("/moderation/flags", moderators, h.queue)
	rg.POST("/moderation/flags/:id/resolve", moderators, h.resolve)
}

func (h *Handler) listUsers(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	items, total, err := h.Svc.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list users", nil)
		return
	}
	if items == nil {
		items = []users.User{}
	}
	respond.OK(c, gin.H{"items": items, "total": total})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) setRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := c.Param("id")
	actor := middleware.UserIDFromContext(c)
	if err := h.Svc.SetRole(c.Request.Context(), actor, userID, req.Role, c.ClientIP()); err != nil {
		h.respondUserError(c, err, "failed to update role")
		return
	}
	respond.OK(c, gin.H{"id": userID, "role": req.Role})
}

type banRequest struct {
	Banned bool `json:"banned"`
}

func (h *Handler) setBanned(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	userID := c.Param("id")
	actor := middleware.UserIDFromContext(c)
	if err := h.Svc.SetBanned(c.Request.Context(), actor, userID, req.Banned, c.ClientIP()); err != nil {
		h.respondUserError(c, err, "failed to update ban")
		return
	}
	respond.OK(c, gin.H{"id": userID, "banned": req.Banned})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) modelReport(c *gin.Context) {
	report, err := h.Svc.ModelReport(c.Request.Context(), c.Query("version"), intQuery(c, "days", 7))
	if err != nil {
		if errors.Is(err, ErrMonitoringDisabled) {
			respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable, err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load model report", nil)
		return
	}
	respond.OK(c, report)
}

func (h *Handler) auditLog(c *gin.Context) {
	events, err := h.Svc.AuditLog(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load audit log", nil)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respond.OK(c, gin.H{"items": events, "total": len(events)})
}

type flagRequest struct {
	AnalysisID string `json:"analysis_id"`
	Reason     string `json:"reason"`
}

func (h *Handler) flag(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	reporter := middleware.UserIDFromContext(c)
	f, err := h.Svc.FlagContent(c.Request.Context(), reporter, req.AnalysisID, req.Reason)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, verr.Message, nil)
		case errors.Is(err, analyses.ErrNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to flag content", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, f)
}

func (h *Handler) queue(c *gin.Context) {
	status := c.Query("status")
	items, err := h.Svc.Queue(c.Request.Context(), status, intQuery(c, "limit", 50))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, verr.Message, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load moderation queue", nil)
		return
	}
	if items == nil {
		items = []Flag{}
	}
	respond.OK(c, gin.H{"items": items, "total": len(items)})
}

type resolveRequest struct {
	Action string `json:"action"`
}

func (h *Handler) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	moderator := middleware.UserIDFromContext(c)
	f, err := h.Svc.Resolve(c.Request.Context(), moderator, c.Param("id"), req.Action)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, verr.Message, nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Flag not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to resolve flag", nil)
		}
		return
	}
	respond.OK(c, f)
}

func (h *Handler) respondUserError(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, verr.Message, nil)
	case errors.Is(err, users.ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "User not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, fallback, nil)
	}
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
