package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// DBRefreshToken is the durable ledger row. Only the hash of the token is kept.
type DBRefreshToken struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"size:64;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"index;not null;default:false"`
	CreatedAt time.Time
}

func (DBRefreshToken) TableName() string {
	return "refresh_tokens"
}

// RefreshTokenRepositoryImpl implements domain.RefreshTokenRepository using GORM
type RefreshTokenRepositoryImpl struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepositoryImpl {
	return &RefreshTokenRepositoryImpl{db: db}
}

// Create implements domain.RefreshTokenRepository
func (r *RefreshTokenRepositoryImpl) Create(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	row := &DBRefreshToken{
		ID:        rec.ID,
		UserID:    rec.UserID,
		TokenHash: rec.TokenHash,
		ExpiresAt: rec.ExpiresAt.UTC(),
		Revoked:   rec.Revoked,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("%w: store refresh token: %v", domain.ErrPersistence, err)
	}
	rec.CreatedAt = row.CreatedAt
	return nil
}

// FindByID implements domain.RefreshTokenRepository
func (r *RefreshTokenRepositoryImpl) FindByID(ctx context.Context, jti string) (*domain.RefreshTokenRecord, error) {
	var row DBRefreshToken
	if err := r.db.WithContext(ctx).Where("id = ?", jti).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenRevoked
		}
		return nil, fmt.Errorf("%w: find refresh token: %v", domain.ErrPersistence, err)
	}
	return &domain.RefreshTokenRecord{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		Revoked:   row.Revoked,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Claim implements domain.RefreshTokenRepository. The conditional update is a
// single statement, so of two concurrent callers at most one sees a row change.
func (r *RefreshTokenRepositoryImpl) Claim(ctx context.Context, userID uint, jti string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&DBRefreshToken{}).
		Where("id = ? AND user_id = ? AND revoked = ? AND expires_at > ?", jti, userID, false, now.UTC()).
		Update("revoked", true)
	if res.Error != nil {
		return false, fmt.Errorf("%w: claim refresh token: %v", domain.ErrPersistence, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Revoke implements domain.RefreshTokenRepository
func (r *RefreshTokenRepositoryImpl) Revoke(ctx context.Context, userID uint, jti string) error {
	err := r.db.WithContext(ctx).Model(&DBRefreshToken{}).
		Where("id = ? AND user_id = ?", jti, userID).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("%w: revoke refresh token: %v", domain.ErrPersistence, err)
	}
	return nil
}

// RevokeAllForUser implements domain.RefreshTokenRepository
func (r *RefreshTokenRepositoryImpl) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&DBRefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: revoke user refresh tokens: %v", domain.ErrPersistence, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired implements domain.ExpiredPurger. Revoked rows go too: a
// missing row and a revoked row are indistinguishable to Claim.
func (r *RefreshTokenRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ? OR revoked = ?", now.UTC(), true).Delete(&DBRefreshToken{})
	return res.RowsAffected, res.Error
}

var (
	_ domain.RefreshTokenRepository = (*RefreshTokenRepositoryImpl)(nil)
	_ domain.ExpiredPurger          = (*RefreshTokenRepositoryImpl)(nil)
)
