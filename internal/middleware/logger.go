package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ZapLogger logs each request. /api/* goes at info, everything else at debug.
// Streaming turns are logged once the stream closes.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		kv := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"clientIP", c.ClientIP(),
		}
		if caller, ok := CallerFrom(c); ok {
			kv = append(kv, "user_id", caller.UserID)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		if strings.HasPrefix(path, "/api/") {
			sugar.Infow("HTTP", kv...)
		} else {
			sugar.Debugw("HTTP", kv...)
		}
	}
}
