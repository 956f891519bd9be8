package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/platform/ctxutil"
)

func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		td := &ctxutil.TraceData{
			TraceID:   c.GetHeader("X-Trace-Id"),
			RequestID: requestID,
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Next()
	}
}
