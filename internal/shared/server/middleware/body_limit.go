package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/shared/server/respond"
)

// BodyLimit rejects requests whose declared length exceeds maxBytes and caps
// reads on everything else so chunked uploads cannot bypass the check.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeTooLarge,
				fmt.Sprintf("Request body too large. Maximum size is %.1fMB", float64(maxBytes)/(1024*1024)),
				map[string]any{"max_size_bytes": maxBytes})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
