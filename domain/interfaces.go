package domain

import (
	"context"
	"time"
)

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
}

// SessionBinding ties an OTP record to the session that owns it
type SessionBinding struct {
	Token   string
	Purpose SessionPurpose
	UserID  *uint
}

// VerificationStore persists OTP records keyed by session token and channel
type VerificationStore interface {
	Save(ctx context.Context, rec *OTPRecord, ttl time.Duration) error
	Find(ctx context.Context, sessionToken string, t IdentifierType) (*OTPRecord, error)
	FindSession(ctx context.Context, sessionToken string) ([]*OTPRecord, error)
	IncrementAttempts(ctx context.Context, sessionToken string, t IdentifierType) (int, error)
	MarkVerified(ctx context.Context, sessionToken string, t IdentifierType) error
	DeleteSession(ctx context.Context, sessionToken string) error
	// ClaimSession deletes the session and reports whether this call removed it
	ClaimSession(ctx context.Context, sessionToken string) (bool, error)
}

// RefreshTokenRepository is the durable side of the token ledger
type RefreshTokenRepository interface {
	Create(ctx context.Context, rec *RefreshTokenRecord) error
	FindByID(ctx context.Context, jti string) (*RefreshTokenRecord, error)
	// Claim flips revoked false->true for an unexpired token and reports
	// whether this call performed the flip.
	Claim(ctx context.Context, userID uint, jti string, now time.Time) (bool, error)
	Revoke(ctx context.Context, userID uint, jti string) error
	RevokeAllForUser(ctx context.Context, userID uint) (int64, error)
}

// ExpiredPurger removes durable rows whose lifetime has passed
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OTPService generates, stores and verifies a single identifier's code
type OTPService interface {
	GenerateCode() (string, error)
	Store(ctx context.Context, binding SessionBinding, identifier string, t IdentifierType, code string, ttl time.Duration) (*OTPRecord, error)
	Verify(ctx context.Context, sessionToken, identifier string, t IdentifierType, code string) error
	Resend(ctx context.Context, sessionToken string, t IdentifierType) (*OTPSession, error)
}

// VerificationSessionService binds OTP records under one session token
type VerificationSessionService interface {
	SendDualOTP(ctx context.Context, email, phone string, userID *uint) (*OTPSession, error)
	SendLoginOTP(ctx context.Context, identifier string, t IdentifierType, userID uint, ttl time.Duration) (*OTPSession, error)
	// IsSessionFullyVerified returns nil when the session is absent or expired
	IsSessionFullyVerified(ctx context.Context, sessionToken string) (*SessionView, error)
	CleanupSession(ctx context.Context, sessionToken string) error
	// ClaimSession consumes the session; ErrSessionNotFound when another
	// caller already did
	ClaimSession(ctx context.Context, sessionToken string) error
}

// TokenService defines token signing and parsing
type TokenService interface {
	GenerateAccessToken(claims TokenClaims) (string, time.Time, error)
	GenerateRefreshToken(claims TokenClaims) (string, time.Time, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	ValidateRefreshToken(token string) (*TokenClaims, error)
	AccessTTL() time.Duration
}

// TokenIssuer mints access/refresh pairs and records them in the ledger
type TokenIssuer interface {
	Issue(ctx context.Context, user *User) (*TokenPair, error)
}

// TokenLedger tracks refresh-token validity and access-token blacklisting
type TokenLedger interface {
	Record(ctx context.Context, userID uint, jti, refreshToken string, expiresAt time.Time) error
	IsRefreshTokenValid(ctx context.Context, userID uint, jti string) bool
	IsRefreshTokenValidStrict(ctx context.Context, userID uint, jti string) (bool, error)
	Consume(ctx context.Context, userID uint, jti string) error
	Revoke(ctx context.Context, userID uint, jti string) error
	RevokeAll(ctx context.Context, userID uint) error
	BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, jti string) bool
}

// AuthService is the registration/login/session state machine
type AuthService interface {
	Register(ctx context.Context, email, phone string) (*OTPSession, error)
	VerifyOTP(ctx context.Context, sessionToken, identifier string, t IdentifierType, code string) (*SessionView, error)
	ResendOTP(ctx context.Context, sessionToken string, t IdentifierType) (*OTPSession, error)
	CompleteOnboarding(ctx context.Context, sessionToken string, profile OnboardingProfile) (*AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*OTPSession, error)
	VerifyLogin(ctx context.Context, sessionToken, identifier string, t IdentifierType, code string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, userID uint, accessJTI string, accessExpiresAt time.Time) error
	GetUserProfile(ctx context.Context, userID uint) (*User, error)
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// NotificationService is a raw message provider
type NotificationService interface {
	SendSMS(ctx context.Context, to, message string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// OTPNotifier delivers one-time codes over a channel
type OTPNotifier interface {
	SendEmailOTP(ctx context.Context, to, code string, ttl time.Duration) error
	SendSMSOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	CheckPermission(userType, resource, action string) (bool, error)
	SeedDefaults() error
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID              uint
	Email               string
	Phone               string
	UserType            string
	JTI                 string
	OnboardingCompleted bool
	TokenType           string
	IssuedAt            int64
	ExpiresAt           int64
}

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)
