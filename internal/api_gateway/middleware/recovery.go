package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into the INTERNAL_SERVER_ERROR envelope used by the
// handlers. A client that went away mid-response is not answered.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				logger.Warn("Client aborted request", "path", c.Request.URL.Path, "correlation_id", GetCorrelationID(c))
				c.Abort()
				return
			}

			attrs := []any{
				"error", r,
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"route", c.FullPath(),
				"correlation_id", GetCorrelationID(c),
			}
			if actor, ok := GetActor(c); ok {
				attrs = append(attrs, "actor_id", actor.ID)
			}
			logger.Error("Panic recovered", attrs...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		}()

		c.Next()
	}
}
