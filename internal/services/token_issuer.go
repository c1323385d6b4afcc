package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// TokenIssuerImpl implements domain.TokenIssuer
type TokenIssuerImpl struct {
	tokens domain.TokenService
	ledger domain.TokenLedger
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(tokens domain.TokenService, ledger domain.TokenLedger) *TokenIssuerImpl {
	return &TokenIssuerImpl{tokens: tokens, ledger: ledger, now: time.Now}
}

// Issue implements domain.TokenIssuer. Access and refresh token carry the
// same payload and jti.
func (i *TokenIssuerImpl) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	claims := domain.TokenClaims{
		UserID:              user.ID,
		Email:               user.Email,
		Phone:               user.Phone,
		UserType:            user.UserType,
		JTI:                 uuid.NewString(),
		OnboardingCompleted: user.OnboardingCompleted,
		IssuedAt:            i.now().Unix(),
	}

	accessToken, accessExp, err := i.tokens.GenerateAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, refreshExp, err := i.tokens.GenerateRefreshToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := i.ledger.Record(ctx, user.ID, claims.JTI, refreshToken, refreshExp); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: record refresh token: %v", domain.ErrPersistence, err)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		JTI:              claims.JTI,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

var _ domain.TokenIssuer = (*TokenIssuerImpl)(nil)
