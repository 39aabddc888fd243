package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// contextKeys are the gin keys handlers set for the resource a request
// touches, paired with the log field they are reported under.
var contextKeys = [][2]string{
	{"taskId", "task_id"},
	{"sessionId", "session_id"},
	{"caseId", "case_id"},
}

// Error logs the failure and aborts with a standardized error body. Client
// errors log at warn, server and upstream failures at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	for _, k := range contextKeys {
		if v := c.GetString(k[0]); v != "" {
			fields[k[1]] = v
		}
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
