package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propertyhub/internal/pkg/response"
)

// RequestLogger logs each request with structured fields and recovers from
// panics with a JSON 500.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				logrus.WithFields(logrus.Fields{
					"method":    c.Request.Method,
					"path":      c.Request.URL.Path,
					"client_ip": c.ClientIP(),
					"panic":     fmt.Sprintf("%v", recovered),
					"stack":     string(debug.Stack()),
				}).Error("request panic")

				response.Error(c, http.StatusInternalServerError, response.CodeInternal, "internal server error")
				c.Abort()
				return
			}

			entry := logrus.WithFields(logrus.Fields{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"status":     c.Writer.Status(),
				"latency_ms": time.Since(start).Milliseconds(),
				"client_ip":  c.ClientIP(),
				"user_id":    c.GetInt64("user_id"),
			})
			switch {
			case c.Writer.Status() >= http.StatusInternalServerError:
				entry.Error("request failed")
			case len(c.Errors) > 0:
				entry.WithField("errors", c.Errors.String()).Warn("request completed with errors")
			default:
				entry.Info("request completed")
			}
		}()

		c.Next()
	}
}
