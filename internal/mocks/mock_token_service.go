package mocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// MockTokenService implements domain.TokenService interface for testing.
// Default tokens are "<typ>:<userID>:<jti>" and validate by parsing that form.
type MockTokenService struct {
	GenerateAccessTokenFunc  func(claims domain.TokenClaims) (string, time.Time, error)
	GenerateRefreshTokenFunc func(claims domain.TokenClaims) (string, time.Time, error)
	ValidateAccessTokenFunc  func(token string) (*domain.TokenClaims, error)
	ValidateRefreshTokenFunc func(token string) (*domain.TokenClaims, error)
	TTL                      time.Duration
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{TTL: 15 * time.Minute}
}

// GenerateAccessToken generates an access token
func (m *MockTokenService) GenerateAccessToken(claims domain.TokenClaims) (string, time.Time, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(claims)
	}
	return fmt.Sprintf("access:%d:%s", claims.UserID, claims.JTI), time.Now().Add(m.TTL), nil
}

// GenerateRefreshToken generates a refresh token
func (m *MockTokenService) GenerateRefreshToken(claims domain.TokenClaims) (string, time.Time, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(claims)
	}
	return fmt.Sprintf("refresh:%d:%s", claims.UserID, claims.JTI), time.Now().Add(7 * 24 * time.Hour), nil
}

// ValidateAccessToken validates an access token
func (m *MockTokenService) ValidateAccessToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateAccessTokenFunc != nil {
		return m.ValidateAccessTokenFunc(token)
	}
	return parseMockToken(token, domain.TokenTypeAccess, m.TTL)
}

// ValidateRefreshToken validates a refresh token
func (m *MockTokenService) ValidateRefreshToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(token)
	}
	return parseMockToken(token, domain.TokenTypeRefresh, 7*24*time.Hour)
}

// AccessTTL returns the configured access lifetime
func (m *MockTokenService) AccessTTL() time.Duration {
	return m.TTL
}

func parseMockToken(token, typ string, ttl time.Duration) (*domain.TokenClaims, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] != typ {
		return nil, domain.ErrTokenInvalid
	}
	var userID uint
	if _, err := fmt.Sscanf(parts[1], "%d", &userID); err != nil {
		return nil, domain.ErrTokenMalformed
	}
	now := time.Now()
	return &domain.TokenClaims{
		UserID:    userID,
		UserType:  domain.UserTypePersonal,
		JTI:       parts[2],
		TokenType: typ,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}, nil
}

// MockTokenLedger implements domain.TokenLedger interface for testing
type MockTokenLedger struct {
	RecordFunc                    func(ctx context.Context, userID uint, jti, refreshToken string, expiresAt time.Time) error
	IsRefreshTokenValidFunc       func(ctx context.Context, userID uint, jti string) bool
	IsRefreshTokenValidStrictFunc func(ctx context.Context, userID uint, jti string) (bool, error)
	ConsumeFunc                   func(ctx context.Context, userID uint, jti string) error
	RevokeFunc                    func(ctx context.Context, userID uint, jti string) error
	RevokeAllFunc                 func(ctx context.Context, userID uint) error
	BlacklistAccessTokenFunc      func(ctx context.Context, jti string, ttl time.Duration) error
	IsAccessTokenBlacklistedFunc  func(ctx context.Context, jti string) bool
}

// NewMockTokenLedger creates a new MockTokenLedger with default behaviors
func NewMockTokenLedger() *MockTokenLedger {
	return &MockTokenLedger{}
}

// Record stores a refresh token
func (m *MockTokenLedger) Record(ctx context.Context, userID uint, jti, refreshToken string, expiresAt time.Time) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, userID, jti, refreshToken, expiresAt)
	}
	return nil
}

// IsRefreshTokenValid reports refresh token validity
func (m *MockTokenLedger) IsRefreshTokenValid(ctx context.Context, userID uint, jti string) bool {
	if m.IsRefreshTokenValidFunc != nil {
		return m.IsRefreshTokenValidFunc(ctx, userID, jti)
	}
	return true
}

// IsRefreshTokenValidStrict reports refresh token validity with durable fallback
func (m *MockTokenLedger) IsRefreshTokenValidStrict(ctx context.Context, userID uint, jti string) (bool, error) {
	if m.IsRefreshTokenValidStrictFunc != nil {
		return m.IsRefreshTokenValidStrictFunc(ctx, userID, jti)
	}
	return true, nil
}

// Consume claims a refresh token for rotation
func (m *MockTokenLedger) Consume(ctx context.Context, userID uint, jti string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID, jti)
	}
	return nil
}

// Revoke revokes one refresh token
func (m *MockTokenLedger) Revoke(ctx context.Context, userID uint, jti string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, jti)
	}
	return nil
}

// RevokeAll revokes every refresh token of a user
func (m *MockTokenLedger) RevokeAll(ctx context.Context, userID uint) error {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID)
	}
	return nil
}

// BlacklistAccessToken blacklists an access token
func (m *MockTokenLedger) BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	if m.BlacklistAccessTokenFunc != nil {
		return m.BlacklistAccessTokenFunc(ctx, jti, ttl)
	}
	return nil
}

// IsAccessTokenBlacklisted reports whether an access token is blacklisted
func (m *MockTokenLedger) IsAccessTokenBlacklisted(ctx context.Context, jti string) bool {
	if m.IsAccessTokenBlacklistedFunc != nil {
		return m.IsAccessTokenBlacklistedFunc(ctx, jti)
	}
	return false
}

// Compile-time interface compliance verification
var (
	_ domain.TokenService = (*MockTokenService)(nil)
	_ domain.TokenLedger  = (*MockTokenLedger)(nil)
)
