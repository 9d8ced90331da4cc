package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", middleware.RequireUser(), h.me)
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token subjects from OAuth sign-in may not have a row yet.
			respond.JSON(c, http.StatusOK, gin.H{
				"id":      userID,
				"email":   middleware.UserEmailFromContext(c),
				"name":    middleware.UserNameFromContext(c),
				"picture": middleware.UserPictureFromContext(c),
				"role":    middleware.UserRoleFromContext(c),
				"plan":    DefaultPlan,
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to load profile", nil)
		return
	}
	respond.JSON(c, http.StatusOK, ProfileResponse(user))
}

// ProfileResponse shapes a user for API responses, leaving out credential and
// lockout fields.
func ProfileResponse(user User) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"picture":    user.Picture,
		"role":       user.Role,
		"plan":       user.Plan,
		"created_at": user.CreatedAt,
	}
}
