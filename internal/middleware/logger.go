package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"safepath/internal/pkg/logging"
	"safepath/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or assigns one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one line per request. Bodies, cookies and the
// Authorization header are never logged.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		if userID := c.GetInt64("user_id"); userID != 0 {
			args = append(args, "user_id", userID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error(c.Request.Context(), "request", args...)
		case status >= http.StatusBadRequest:
			log.Warn(c.Request.Context(), "request", args...)
		default:
			log.Info(c.Request.Context(), "request", args...)
		}
	}
}

// ErrorLogger logs errors attached with c.Error and recovers from
// panics. The stack goes to the log only, never to the client.
func ErrorLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error(c.Request.Context(), "panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString("request_id"),
					"error", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()),
				)
				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
				c.Abort()
				return
			}

			for _, err := range c.Errors {
				log.Error(c.Request.Context(), "request error",
					"status", c.Writer.Status(),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"user_id", c.GetInt64("user_id"),
					"request_id", c.GetString("request_id"),
					"error", err.Error(),
				)
			}
		}()

		c.Next()
	}
}
