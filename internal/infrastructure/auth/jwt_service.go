package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// sessionClaims is the signed payload shared by access and refresh tokens.
// Only typ and the time window differ between the two.
type sessionClaims struct {
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	UserType            string `json:"userType"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	Type                string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTServiceImpl implements domain.TokenService
type JWTServiceImpl struct {
	secretKey       []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, issuer string, accessTTL, refreshTTL time.Duration) *JWTServiceImpl {
	return &JWTServiceImpl{
		secretKey:       []byte(secretKey),
		issuer:          issuer,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}
}

// AccessTTL implements domain.TokenService
func (j *JWTServiceImpl) AccessTTL() time.Duration {
	return j.accessTokenTTL
}

// GenerateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateAccessToken(claims domain.TokenClaims) (string, time.Time, error) {
	return j.sign(claims, domain.TokenTypeAccess, j.accessTokenTTL)
}

// GenerateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateRefreshToken(claims domain.TokenClaims) (string, time.Time, error) {
	return j.sign(claims, domain.TokenTypeRefresh, j.refreshTokenTTL)
}

func (j *JWTServiceImpl) sign(c domain.TokenClaims, typ string, ttl time.Duration) (string, time.Time, error) {
	if c.JTI == "" {
		return "", time.Time{}, errors.New("token claims require a jti")
	}
	issuedAt := j.now()
	if c.IssuedAt > 0 {
		issuedAt = time.Unix(c.IssuedAt, 0)
	}
	expiresAt := issuedAt.Add(ttl)

	claims := sessionClaims{
		Email:               c.Email,
		Phone:               c.Phone,
		UserType:            c.UserType,
		OnboardingCompleted: c.OnboardingCompleted,
		Type:                typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(c.UserID), 10),
			Issuer:    j.issuer,
			ID:        c.JTI,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateToken(tokenString, domain.TokenTypeAccess)
}

// ValidateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateToken(tokenString, domain.TokenTypeRefresh)
}

// validateToken validates a JWT token and returns claims
func (j *JWTServiceImpl) validateToken(tokenString, wantType string) (*domain.TokenClaims, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, domain.ErrTokenMalformed
		default:
			return nil, domain.ErrTokenInvalid
		}
	}
	if !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	// an access token must never be accepted as a refresh token, or vice versa
	if claims.Type != wantType {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ID == "" {
		return nil, domain.ErrTokenMalformed
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, domain.ErrTokenMalformed
	}

	out := &domain.TokenClaims{
		UserID:              uint(userID),
		Email:               claims.Email,
		Phone:               claims.Phone,
		UserType:            claims.UserType,
		JTI:                 claims.ID,
		OnboardingCompleted: claims.OnboardingCompleted,
		TokenType:           claims.Type,
		ExpiresAt:           claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out, nil
}

var _ domain.TokenService = (*JWTServiceImpl)(nil)
