package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http/middleware"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/validation"
)

// Cookie names of the token pair
const (
	AccessTokenCookie  = middleware.AccessTokenCookie
	RefreshTokenCookie = "refreshToken"
)

// CookieSettings controls the token cookies set on successful auth
type CookieSettings struct {
	Secure bool
	Domain string
}

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc domain.AuthService
	cookies CookieSettings
	log     *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService, cookies CookieSettings, log *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authSvc: authSvc,
		cookies: cookies,
		log:     log.With("component", "auth_handlers"),
	}
}

// RegisterValidators installs the identifier and otpcode binding tags on
// gin's validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return validation.RegisterBindings(v)
}

// RegisterRequest starts a registration
type RegisterRequest struct {
	Email string `json:"email" binding:"required,identifier"`
	Phone string `json:"phone" binding:"required"`
}

// VerifyOTPRequest verifies one channel of a session
type VerifyOTPRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	Identifier   string `json:"identifier" binding:"required,identifier"`
	Type         string `json:"type" binding:"required,oneof=email phone"`
	Code         string `json:"code" binding:"required,otpcode"`
}

// ResendOTPRequest asks for a fresh code on one channel
type ResendOTPRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	Type         string `json:"type" binding:"required,oneof=email phone"`
}

// OnboardingRequest completes a verified registration
type OnboardingRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	FullName     string `json:"fullName" binding:"required"`
	Password     string `json:"password" binding:"required"`
	UserType     string `json:"userType" binding:"required"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,identifier"`
	Password   string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token when the cookie is not used
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authSvc.Register(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": sessionBody(session)})
}

// VerifyOTP handles POST /auth/verify-otp
func (h *AuthHandlers) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.authSvc.VerifyOTP(c.Request.Context(), req.SessionToken, req.Identifier,
		domain.IdentifierType(req.Type), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"sessionToken":  view.SessionToken,
		"state":         view.State(),
		"fullyVerified": view.FullyVerified,
		"emailVerified": view.Email != nil && view.Email.Verified,
		"phoneVerified": view.Phone != nil && view.Phone.Verified,
		"expiresAt":     view.ExpiresAt,
	}})
}

// ResendOTP handles POST /auth/resend-otp
func (h *AuthHandlers) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authSvc.ResendOTP(c.Request.Context(), req.SessionToken, domain.IdentifierType(req.Type))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessionBody(session)})
}

// CompleteOnboarding handles POST /auth/onboarding
func (h *AuthHandlers) CompleteOnboarding(c *gin.Context) {
	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authSvc.CompleteOnboarding(c.Request.Context(), req.SessionToken, domain.OnboardingProfile{
		FullName: req.FullName,
		Password: req.Password,
		UserType: req.UserType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAuthResult(c, http.StatusCreated, result)
}

// Login handles POST /auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authSvc.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessionBody(session)})
}

// VerifyLogin handles POST /auth/login/verify
func (h *AuthHandlers) VerifyLogin(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authSvc.VerifyLogin(c.Request.Context(), req.SessionToken, req.Identifier,
		domain.IdentifierType(req.Type), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAuthResult(c, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh. The token comes from the body or the
// refresh cookie.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(RefreshTokenCookie)
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token required"})
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.clearCookies(c)
		h.writeError(c, err)
		return
	}
	h.writeAuthResult(c, http.StatusOK, result)
}

// Me handles GET /auth/me (requires authentication)
func (h *AuthHandlers) Me(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return
	}

	user, err := h.authSvc.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": userBody(user)})
}

// Logout handles POST /auth/logout (requires authentication)
func (h *AuthHandlers) Logout(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return
	}

	err := h.authSvc.Logout(c.Request.Context(), userID, c.GetString(middleware.ContextJTI),
		c.GetTime(middleware.ContextTokenExp))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.clearCookies(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Logged out successfully"}})
}

func (h *AuthHandlers) writeAuthResult(c *gin.Context, status int, result *domain.AuthResult) {
	now := time.Now()
	h.setCookie(c, AccessTokenCookie, result.Tokens.AccessToken, result.Tokens.AccessExpiresAt.Sub(now))
	h.setCookie(c, RefreshTokenCookie, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt.Sub(now))

	c.JSON(status, gin.H{"data": gin.H{
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
		"tokenType":    "Bearer",
		"expiresIn":    int64(result.Tokens.AccessExpiresAt.Sub(now).Seconds()),
		"user":         userBody(result.User),
	}})
}

func (h *AuthHandlers) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandlers) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

// writeError maps an error category to a status code. Authentication
// failures share one message.
func (h *AuthHandlers) writeError(c *gin.Context, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.FormatInt(cooldown.RetryAfterSeconds, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Please wait before requesting another code",
			"retryAfter": cooldown.RetryAfterSeconds,
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": publicMessage(err)})
	case errors.Is(err, domain.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": publicMessage(err)})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": publicMessage(err)})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": publicMessage(err)})
	default:
		h.log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// publicMessage drops the category suffix from a domain error
func publicMessage(err error) string {
	msg, _, _ := strings.Cut(err.Error(), ": ")
	return msg
}

func sessionBody(s *domain.OTPSession) gin.H {
	delivery := gin.H{}
	if ok, sent := s.Delivery[domain.IdentifierEmail]; sent {
		delivery["email"] = ok
	}
	if ok, sent := s.Delivery[domain.IdentifierPhone]; sent {
		delivery["sms"] = ok
	}
	return gin.H{
		"sessionToken": s.SessionToken,
		"expiresAt":    s.ExpiresAt,
		"delivery":     delivery,
	}
}

func userBody(u *domain.User) gin.H {
	return gin.H{
		"id":                  u.ID,
		"email":               u.Email,
		"phone":               u.Phone,
		"fullName":            u.FullName,
		"userType":            u.UserType,
		"onboardingCompleted": u.OnboardingCompleted,
		"createdAt":           u.CreatedAt,
	}
}
