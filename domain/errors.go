package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the services wraps one of these,
// and the transport layer maps them to status codes with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrAuthentication     = errors.New("authentication failed")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	ErrDependencyDegraded = errors.New("dependency degraded")
	ErrPersistence        = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")
)

// User errors
var (
	ErrUserNotFound       = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrAuthentication)
	ErrUserAlreadyExists  = fmt.Errorf("user already exists: %w", ErrConflict)
	ErrInvalidUserType    = fmt.Errorf("unsupported user type: %w", ErrValidation)
	ErrInvalidIdentifier  = fmt.Errorf("malformed identifier: %w", ErrValidation)
	ErrInvalidProfile     = fmt.Errorf("full name is required: %w", ErrValidation)
	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters: %w", ErrValidation)
)

// OTP errors
var (
	ErrOTPNotFound           = fmt.Errorf("otp not found: %w", ErrAuthentication)
	ErrOTPExpired            = fmt.Errorf("otp has expired: %w", ErrAuthentication)
	ErrOTPInvalid            = fmt.Errorf("invalid otp code: %w", ErrAuthentication)
	ErrOTPIdentifierMismatch = fmt.Errorf("otp identifier mismatch: %w", ErrAuthentication)
	ErrOTPMaxAttempts        = fmt.Errorf("maximum otp attempts exceeded: %w", ErrRateLimited)
	ErrOTPResendCooldown     = fmt.Errorf("otp resend cooldown active: %w", ErrRateLimited)
	ErrOTPAlreadyVerified    = fmt.Errorf("channel already verified: %w", ErrConflict)
)

// Token errors
var (
	ErrTokenInvalid   = fmt.Errorf("invalid token: %w", ErrAuthentication)
	ErrTokenExpired   = fmt.Errorf("token has expired: %w", ErrAuthentication)
	ErrTokenMalformed = fmt.Errorf("malformed token: %w", ErrAuthentication)
	ErrTokenRevoked   = fmt.Errorf("token has been revoked: %w", ErrAuthentication)
)

// Session errors
var (
	ErrSessionNotFound    = fmt.Errorf("verification session not found: %w", ErrAuthentication)
	ErrSessionNotVerified = fmt.Errorf("verification session incomplete: %w", ErrAuthentication)
	ErrSessionPurpose     = fmt.Errorf("verification session used for the wrong flow: %w", ErrAuthentication)
)

// ErrCacheUnavailable marks a cache call that failed for reasons other than a miss
var ErrCacheUnavailable = fmt.Errorf("cache unavailable: %w", ErrDependencyDegraded)

// CooldownError carries how long a caller must wait before resending
type CooldownError struct {
	RetryAfterSeconds int64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.RetryAfterSeconds)
}

func (e *CooldownError) Unwrap() error { return ErrOTPResendCooldown }
