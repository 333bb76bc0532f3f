package respond

import (
	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/telemetry"
)

// Context keys shared with the middleware package, which imports this one.
const (
	requestIDKey  = "requestId"
	userIDKey     = "userId"
	proposalIDKey = "proposalId"
	importIDKey   = "importId"
)

// ErrorBody defines the standardized error object. Details carries the ids a
// client needs to recover from a conflict, such as the existing import or the
// proposal's current status.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts with a standardized error response. 5xx responses log at error
// level, the rest at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	requestID := c.GetString(requestIDKey)
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": requestID,
	}
	for key, field := range map[string]string{userIDKey: "user_id", proposalIDKey: "proposal_id", importIDKey: "import_id"} {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}
