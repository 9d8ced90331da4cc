package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/shared/server/respond"
)

const (
	userIDKey      = "userId"
	userEmailKey   = "userEmail"
	userNameKey    = "userName"
	userPictureKey = "userPicture"
	userRoleKey    = "userRole"
	isGuestKey     = "isGuest"
)

// Auth resolves the caller's identity. A valid Bearer access token yields a
// full identity; requests without one proceed as guests keyed by the
// X-Guest-Id header or the client IP. Malformed or expired tokens are
// rejected here so handlers never see a half-authenticated request.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}

			claims, err := auth.VerifyToken(token, auth.TokenTypeAccess)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}

			c.Set(userIDKey, claims.Sub)
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			if claims.Name != "" {
				c.Set(userNameKey, claims.Name)
			}
			if claims.Picture != "" {
				c.Set(userPictureKey, claims.Picture)
			}
			role := claims.Role
			if role == "" {
				role = auth.RoleUser
			}
			c.Set(userRoleKey, role)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			guestID = strings.TrimSpace(c.ClientIP())
		}
		if guestID == "" {
			guestID = "unknown"
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

// RequireUser rejects guest requests. Mount after Auth on endpoints that
// need an account.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsGuest(c) {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers below the wanted role. Implies RequireUser.
func RequireRole(want string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsGuest(c) {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
			return
		}
		if !auth.RoleAtLeast(UserRoleFromContext(c), want) {
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "Insufficient privileges", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userNameKey)
	if name, ok := val.(string); ok {
		return name
	}
	return ""
}

// UserPictureFromContext fetches the user picture set by the auth middleware.
func UserPictureFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userPictureKey)
	if picture, ok := val.(string); ok {
		return picture
	}
	return ""
}

// UserRoleFromContext fetches the role set by the auth middleware.
func UserRoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userRoleKey)
	if role, ok := val.(string); ok {
		return role
	}
	return ""
}

// IsGuest reports whether the request carries no authenticated user.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return true
	}
	val, ok := c.Get(isGuestKey)
	if !ok {
		return true
	}
	guest, ok := val.(bool)
	if !ok {
		return true
	}
	return guest
}
