package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/server/respond"
	"justicebench/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500. Batch workers recover their
// own panics; this only guards the request goroutine.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"task_id":    c.GetString("taskId"),
				"session_id": c.GetString("sessionId"),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Internal(c, "unexpected server error")
		}()
		c.Next()
	}
}
