package reqlog

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	CtxRequestIDKey = "reqid"
)

// Middleware tags every request with an ID and logs method, path, status and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set(CtxRequestIDKey, id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := "[INFO]"
		if status >= 500 {
			level = "[ERROR]"
		} else if status >= 400 {
			level = "[WARN]"
		}
		log.Printf("%s req id=%s %s %s status=%d dur=%s", level, id, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// ID returns the request ID assigned by Middleware.
func ID(c *gin.Context) string {
	return c.GetString(CtxRequestIDKey)
}
