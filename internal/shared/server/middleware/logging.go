package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate entities.
const (
	ProposalIDKey       = "proposalId"
	ImportIDKey         = "importId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"proposal_id":       c.GetString(ProposalIDKey),
			"import_id":         c.GetString(ImportIDKey),
			"is_guest":          IsGuest(c),
			"client_ip":         c.ClientIP(),
		})
	}
}
