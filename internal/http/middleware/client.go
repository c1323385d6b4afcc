package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// ClientInfo puts the caller's IP and user agent on the request context for
// audit events
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := domain.WithClientContext(c.Request.Context(), &domain.ClientContext{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
