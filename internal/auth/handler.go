package auth

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/respond"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/users"
)

// Handler serves signup, login, and the token lifecycle endpoints.
type Handler struct {
	Svc   *Service
	Users *users.Service
}

func NewHandler(svc *Service, usersSvc *users.Service) *Handler {
	return &Handler{Svc: svc, Users: usersSvc}
}

// RegisterRoutes attaches auth routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signup)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/refresh", h.refresh)
	rg.POST("/auth/logout", h.logout)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User         users.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "name, email and password are required", nil)
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		var policyErr *users.PasswordPolicyError
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "Email already registered", nil)
		case errors.As(err, &policyErr):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Password does not meet requirements", policyErr.Problems)
		case errors.Is(err, users.ErrInvalidEmail):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid email address", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to create account", nil)
		}
		return
	}

	pair, err := h.Svc.IssueTokens(user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to issue tokens", nil)
		return
	}

	telemetry.Info("auth.signup", map[string]any{"user_id": user.ID})
	respond.JSON(c, http.StatusCreated, authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondLoginError(c, req.Email, err)
		return
	}

	pair, err := h.Svc.IssueTokens(user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to issue tokens", nil)
		return
	}

	telemetry.Info("auth.login", map[string]any{"user_id": user.ID, "ip": c.ClientIP()})
	respond.OK(c, authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

func (h *Handler) respondLoginError(c *gin.Context, email string, err error) {
	var credErr *users.CredentialsError
	var lockErr *users.LockedError
	switch {
	case errors.As(err, &lockErr):
		telemetry.Warn("auth.login_locked", map[string]any{"email": email, "ip": c.ClientIP()})
		minutes := minutesUntil(lockErr.Until)
		if lockErr.JustLocked {
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden,
				fmt.Sprintf("Account locked due to too many failed login attempts. Try again in %d minutes.", minutes), nil)
			return
		}
		respond.Error(c, http.StatusForbidden, respond.CodeForbidden,
			fmt.Sprintf("Account is locked. Try again in %d minutes.", minutes), nil)
	case errors.As(err, &credErr):
		telemetry.Warn("auth.login_failed", map[string]any{"email": email, "ip": c.ClientIP(), "remaining": credErr.Remaining})
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized,
			fmt.Sprintf("Invalid credentials. %d attempts remaining before account lockout.", credErr.Remaining), nil)
	case errors.Is(err, users.ErrBanned):
		respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "Account suspended", nil)
	case errors.Is(err, users.ErrInvalidCredentials):
		telemetry.Warn("auth.login_failed", map[string]any{"email": email, "ip": c.ClientIP()})
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid credentials", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to log in", nil)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid token", nil)
		return
	}

	pair, err := h.Svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid token", nil)
		return
	}
	respond.OK(c, pair)
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid token", nil)
		return
	}

	if err := h.Svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid token", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func minutesUntil(t time.Time) int {
	minutes := int(math.Ceil(time.Until(t).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
