package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/telemetry"
)

// resourceKeys are the gin keys handlers set for the task, session or case a
// request touches. Only keys that were set are logged.
var resourceKeys = [][2]string{
	{"taskId", "task_id"},
	{"sessionId", "session_id"},
	{"caseId", "case_id"},
}

// Logging emits one structured line per request. Preflights and metrics
// scrapes are not logged.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes":       c.Writer.Size(),
			"client_ip":   c.ClientIP(),
		}
		for _, k := range resourceKeys {
			if v := c.GetString(k[0]); v != "" {
				fields[k[1]] = v
			}
		}
		if status >= http.StatusInternalServerError {
			telemetry.Warn("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
