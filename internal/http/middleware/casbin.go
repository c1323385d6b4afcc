package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// CasbinMW authorizes authenticated requests by user type
type CasbinMW struct {
	policies domain.PolicyService
	log      *slog.Logger
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policies domain.PolicyService, log *slog.Logger) *CasbinMW {
	return &CasbinMW{policies: policies, log: log.With("component", "casbin_middleware")}
}

// Enforce returns the casbin authorization middleware. It must run after
// AuthMW.WithJWT.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := c.GetString(ContextUserType)
		if _, ok := c.Get(ContextUserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found in token"})
			return
		}

		// match the route pattern, not the concrete path
		resource := c.FullPath()
		if resource == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := mw.policies.CheckPermission(userType, resource, c.Request.Method)
		if err != nil {
			mw.log.ErrorContext(c.Request.Context(), "authorization check failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access Denied"})
			return
		}
		c.Next()
	}
}
