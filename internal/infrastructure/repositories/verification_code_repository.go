package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// DBVerificationCode is the durable copy of an OTP record
type DBVerificationCode struct {
	ID             uint      `gorm:"primaryKey"`
	SessionToken   string    `gorm:"size:64;not null;uniqueIndex:idx_verification_session_channel"`
	IdentifierType string    `gorm:"size:8;not null;uniqueIndex:idx_verification_session_channel"`
	Identifier     string    `gorm:"size:255;not null;index"`
	Code           string    `gorm:"size:10;not null"`
	Attempts       int       `gorm:"not null;default:0"`
	Verified       bool      `gorm:"not null;default:false"`
	ExpiresAt      time.Time `gorm:"index;not null"`
	UserID         *uint
	Purpose        string `gorm:"size:16;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DBVerificationCode) TableName() string {
	return "verification_codes"
}

// VerificationCodeRepository implements domain.VerificationStore on the
// relational store. It is the fallback when the cache is degraded.
type VerificationCodeRepository struct {
	db *gorm.DB
}

// NewVerificationCodeRepository creates a new durable verification store
func NewVerificationCodeRepository(db *gorm.DB) *VerificationCodeRepository {
	return &VerificationCodeRepository{db: db}
}

// Save upserts the record for (session, channel), resetting attempts and verified
func (r *VerificationCodeRepository) Save(ctx context.Context, rec *domain.OTPRecord, _ time.Duration) error {
	row := &DBVerificationCode{
		SessionToken:   rec.SessionToken,
		IdentifierType: string(rec.IdentifierType),
		Identifier:     rec.Identifier,
		Code:           rec.Code,
		Attempts:       rec.Attempts,
		Verified:       rec.Verified,
		ExpiresAt:      rec.ExpiresAt.UTC(),
		UserID:         rec.UserID,
		Purpose:        string(rec.Purpose),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_token"}, {Name: "identifier_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"identifier", "code", "attempts", "verified", "expires_at", "user_id", "purpose", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("%w: save verification code: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Find implements domain.VerificationStore
func (r *VerificationCodeRepository) Find(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPRecord, error) {
	var row DBVerificationCode
	err := r.db.WithContext(ctx).
		Where("session_token = ? AND identifier_type = ?", sessionToken, string(t)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("%w: find verification code: %v", domain.ErrPersistence, err)
	}
	return rowToRecord(&row), nil
}

// FindSession implements domain.VerificationStore
func (r *VerificationCodeRepository) FindSession(ctx context.Context, sessionToken string) ([]*domain.OTPRecord, error) {
	var rows []DBVerificationCode
	if err := r.db.WithContext(ctx).Where("session_token = ?", sessionToken).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: find verification session: %v", domain.ErrPersistence, err)
	}
	records := make([]*domain.OTPRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rowToRecord(&rows[i]))
	}
	return records, nil
}

// IncrementAttempts implements domain.VerificationStore. The increment runs in
// SQL so concurrent callers never lose an update.
func (r *VerificationCodeRepository) IncrementAttempts(ctx context.Context, sessionToken string, t domain.IdentifierType) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DBVerificationCode{}).
			Where("session_token = ? AND identifier_type = ?", sessionToken, string(t)).
			Update("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrOTPNotFound
		}
		return tx.Model(&DBVerificationCode{}).
			Where("session_token = ? AND identifier_type = ?", sessionToken, string(t)).
			Pluck("attempts", &attempts).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: increment attempts: %v", domain.ErrPersistence, err)
	}
	return attempts, nil
}

// MarkVerified implements domain.VerificationStore
func (r *VerificationCodeRepository) MarkVerified(ctx context.Context, sessionToken string, t domain.IdentifierType) error {
	res := r.db.WithContext(ctx).Model(&DBVerificationCode{}).
		Where("session_token = ? AND identifier_type = ?", sessionToken, string(t)).
		Update("verified", true)
	if res.Error != nil {
		return fmt.Errorf("%w: mark verified: %v", domain.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOTPNotFound
	}
	return nil
}

// DeleteSession implements domain.VerificationStore
func (r *VerificationCodeRepository) DeleteSession(ctx context.Context, sessionToken string) error {
	if err := r.db.WithContext(ctx).Where("session_token = ?", sessionToken).Delete(&DBVerificationCode{}).Error; err != nil {
		return fmt.Errorf("%w: delete verification session: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ClaimSession implements domain.VerificationStore. Concurrent deletes of the
// same rows affect them in exactly one caller.
func (r *VerificationCodeRepository) ClaimSession(ctx context.Context, sessionToken string) (bool, error) {
	res := r.db.WithContext(ctx).Where("session_token = ?", sessionToken).Delete(&DBVerificationCode{})
	if res.Error != nil {
		return false, fmt.Errorf("%w: claim verification session: %v", domain.ErrPersistence, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired implements domain.ExpiredPurger
func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&DBVerificationCode{})
	return res.RowsAffected, res.Error
}

func rowToRecord(row *DBVerificationCode) *domain.OTPRecord {
	return &domain.OTPRecord{
		SessionToken:   row.SessionToken,
		Identifier:     row.Identifier,
		IdentifierType: domain.IdentifierType(row.IdentifierType),
		Code:           row.Code,
		Attempts:       row.Attempts,
		Verified:       row.Verified,
		ExpiresAt:      row.ExpiresAt,
		UserID:         row.UserID,
		Purpose:        domain.SessionPurpose(row.Purpose),
	}
}

var (
	_ domain.VerificationStore = (*VerificationCodeRepository)(nil)
	_ domain.ExpiredPurger     = (*VerificationCodeRepository)(nil)
)
