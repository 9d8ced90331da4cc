package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/admin"
	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/auth"
	"veriglow-backend/internal/billing"
	"veriglow-backend/internal/chat"
	"veriglow-backend/internal/compliance"
	"veriglow-backend/internal/services/health"
	"veriglow-backend/internal/shared/config"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/tasks"
	"veriglow-backend/internal/usage"
	"veriglow-backend/internal/users"
	"veriglow-backend/internal/webhooks"
)

// RouterDeps carries the handlers the router mounts. Nil entries are
// skipped so tests can stand up a partial API.
type RouterDeps struct {
	Auth       *auth.Handler
	GoogleAuth *auth.GoogleService
	Users      *users.Handler
	Analyses   *analyses.Handler
	Tasks      *tasks.Handler
	Usage      *usage.Handler
	Billing    *billing.Handler
	Chat       *chat.Handler
	Webhooks   *webhooks.Handler
	Compliance *compliance.Handler
	Admin      *admin.Handler
	Health     *health.Service

	// RateLimiter defaults to the in-process limiter when nil.
	RateLimiter middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// /health and /metrics are mounted ahead of the body, rate limit, and auth
// layers so probes and scrapers never get throttled or challenged.
func NewRouter(cfg config.Config, deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	if deps.Health != nil {
		r.GET("/health", deps.Health.Handler())
	}
	r.GET("/metrics", metrics.Handler())

	r.Use(
		middleware.BodyLimit(cfg.MaxRequestBytes),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig(cfg, deps.RateLimiter)),
		middleware.Auth(),
	)

	api := r.Group("/api/v1")
	if deps.Auth != nil {
		deps.Auth.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.Users != nil {
		deps.Users.RegisterRoutes(api)
	}
	if deps.Analyses != nil {
		deps.Analyses.RegisterRoutes(api)
	}
	if deps.Tasks != nil {
		deps.Tasks.RegisterRoutes(api)
	}
	if deps.Usage != nil {
		deps.Usage.RegisterRoutes(api)
	}
	if deps.Billing != nil {
		deps.Billing.RegisterRoutes(api)
	}
	if deps.Chat != nil {
		deps.Chat.RegisterRoutes(api)
	}
	if deps.Webhooks != nil {
		deps.Webhooks.RegisterRoutes(api)
	}
	if deps.Compliance != nil {
		deps.Compliance.RegisterRoutes(api)
	}
	if deps.Admin != nil {
		deps.Admin.RegisterRoutes(api)
	}
	if cfg.Env == "dev" && deps.Usage != nil {
		dev := api.Group("/dev")
		deps.Usage.RegisterDevRoutes(dev)
	}

	return r
}

// rateLimitConfig maps the configured per-minute budgets onto route groups.
func rateLimitConfig(cfg config.Config, limiter middleware.Limiter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"default": {Limit: cfg.RateLimitDefault, Window: time.Minute},
			"analyze": {Limit: cfg.RateLimitAnalyze, Window: time.Minute},
			"chat":    {Limit: cfg.RateLimitChat, Window: time.Minute},
			"login":   {Limit: cfg.RateLimitLogin, Window: time.Minute},
		},
		GroupFor:    rateLimitGroup,
		Limiter:     limiter,
		ExemptPaths: []string{"/health", "/metrics"},
	}
}

// rateLimitGroup picks the budget for a request. Submission endpoints get
// the tight buckets; reads, including task status polling, stay on the
// default one.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	switch c.Request.URL.Path {
	case "/api/v1/analyze", "/api/v1/analyze/document", "/api/v1/analyze/batch", "/api/v1/analyze/scrape":
		return "analyze"
	case "/api/v1/chat":
		return "chat"
	case "/api/v1/auth/login", "/api/v1/auth/signup":
		return "login"
	default:
		return ""
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
