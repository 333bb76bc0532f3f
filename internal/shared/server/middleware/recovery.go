package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/server/respond"
	"tuning-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. The log line carries the
// proposal or import being worked on so a half-finished review can be traced.
// A panic inside the applier's unit of work has already rolled back by the
// time it reaches here.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.FullPath(),
				"method":     c.Request.Method,
			}
			if id := c.GetString(ProposalIDKey); id != "" {
				fields["proposal_id"] = id
			}
			if id := c.GetString(ImportIDKey); id != "" {
				fields["import_id"] = id
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
