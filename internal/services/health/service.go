// Package health answers the liveness probe with a dependency snapshot.
// The endpoint always returns 200; the body says what is limping.
package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"veriglow-backend/internal/shared/server/respond"
)

const checkTimeout = 2 * time.Second

// ModelChecker reports whether a classification backend can serve. The
// model server client implements it.
type ModelChecker interface {
	Healthy(ctx context.Context) bool
}

// Service pings the backing services. Nil dependencies count as healthy:
// dev mode runs on memory stores and should not report degraded.
type Service struct {
	DB    *sql.DB
	Redis *redis.Client
	Model ModelChecker
}

// NewService constructs a Service. Dependencies are set on the returned
// struct.
func NewService() *Service {
	return &Service{}
}

// Report is the health payload.
type Report struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

// Status runs every check. Any failing dependency flips the status string
// to degraded.
func (s *Service) Status(ctx context.Context) Report {
	checks := map[string]bool{
		"database":     s.checkDB(ctx),
		"cache":        s.checkRedis(ctx),
		"model_server": s.checkModel(ctx),
	}
	status := "ok"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

// Handler serves the report. Always 200 so orchestrators keep routing
// while operators read the body.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, s.Status(c.Request.Context()))
	}
}

func (s *Service) checkDB(ctx context.Context) bool {
	if s.DB == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return s.DB.PingContext(ctx) == nil
}

func (s *Service) checkRedis(ctx context.Context) bool {
	if s.Redis == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return s.Redis.Ping(ctx).Err() == nil
}

func (s *Service) checkModel(ctx context.Context) bool {
	if s.Model == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return s.Model.Healthy(ctx)
}
