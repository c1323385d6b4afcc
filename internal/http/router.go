package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http/handlers"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http/middleware"
)

// BuildRouter wires the auth routes. Public routes are rate limited per IP;
// /auth/me and /auth/logout require a valid access token and a casbin grant.
func BuildRouter(ah *handlers.AuthHandlers, jwtmw *middleware.AuthMW, cb *middleware.CasbinMW, rl *middleware.RateLimiter) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.ClientInfo())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	public := r.Group("/auth", rl.Limit())
	public.POST("/register", ah.Register)
	public.POST("/verify-otp", ah.VerifyOTP)
	public.POST("/resend-otp", ah.ResendOTP)
	public.POST("/onboarding", ah.CompleteOnboarding)
	public.POST("/login", ah.Login)
	public.POST("/login/verify", ah.VerifyLogin)
	public.POST("/refresh", ah.Refresh)

	v := r.Group("/auth", jwtmw.WithJWT(), cb.Enforce())
	v.GET("/me", ah.Me)
	v.POST("/logout", ah.Logout)

	return r, nil
}
