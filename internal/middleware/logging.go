package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every request once it has been handled. Requests that
// passed RequireSession carry the user id, collection routes their category.
// 5xx log at error level, 4xx at warn.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RequestLogger requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status_code", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		fields = append(fields, requestFields(c, query)...)

		log := logger.Info
		switch {
		case statusCode >= http.StatusInternalServerError:
			log = logger.Error
		case statusCode >= http.StatusBadRequest:
			log = logger.Warn
		}
		log("Request handled", fields...)
	}
}

// requestFields collects the optional per-request fields.
func requestFields(c *gin.Context, query string) []zap.Field {
	var fields []zap.Field
	if s := SessionFrom(c); s != nil {
		fields = append(fields, zap.String("uid", s.UID), zap.Bool("anonymous", s.Anonymous))
	}
	if category := c.Param("category"); category != "" {
		fields = append(fields, zap.String("category", category))
	}
	if query != "" {
		fields = append(fields, zap.String("query", query))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("gin_errors", c.Errors.String()))
	}
	return fields
}
