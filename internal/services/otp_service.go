package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
)

// OTPConfig holds the one-time code policy
type OTPConfig struct {
	Length         int
	TTL            time.Duration
	LoginTTL       time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	// Retention keeps an expired record around so it can still be resent
	Retention time.Duration
}

// DefaultRetention is how long a record outlives its code
const DefaultRetention = 10 * time.Minute

// OTPServiceImpl implements domain.OTPService over a VerificationStore
type OTPServiceImpl struct {
	store    domain.VerificationStore
	cache    *cache.Cache
	notifier domain.OTPNotifier
	config   OTPConfig
	log      *slog.Logger
	now      func() time.Time
}

// NewOTPService creates a new OTP service. The cache is only used for the
// resend cooldown; records go through store.
func NewOTPService(store domain.VerificationStore, c *cache.Cache, notifier domain.OTPNotifier, config OTPConfig, log *slog.Logger) *OTPServiceImpl {
	if config.Length == 0 {
		config.Length = 6
	}
	if config.Retention == 0 {
		config.Retention = DefaultRetention
	}
	return &OTPServiceImpl{
		store:    store,
		cache:    c,
		notifier: notifier,
		config:   config,
		log:      log.With("component", "otp"),
		now:      time.Now,
	}
}

// Retention is how long a stored record outlives its code
func (s *OTPServiceImpl) Retention() time.Duration {
	return s.config.Retention
}

// GenerateCode implements domain.OTPService
func (s *OTPServiceImpl) GenerateCode() (string, error) {
	digits := make([]byte, s.config.Length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate OTP code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// Store implements domain.OTPService. It also arms the resend cooldown.
func (s *OTPServiceImpl) Store(ctx context.Context, binding domain.SessionBinding, identifier string, t domain.IdentifierType, code string, ttl time.Duration) (*domain.OTPRecord, error) {
	rec := &domain.OTPRecord{
		SessionToken:   binding.Token,
		Identifier:     identifier,
		IdentifierType: t,
		Code:           code,
		ExpiresAt:      s.now().Add(ttl),
		UserID:         binding.UserID,
		Purpose:        binding.Purpose,
	}
	if err := s.store.Save(ctx, rec, ttl+s.config.Retention); err != nil {
		return nil, err
	}
	s.armCooldown(ctx, binding.Token, t)
	return rec, nil
}

// Verify implements domain.OTPService
func (s *OTPServiceImpl) Verify(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) error {
	rec, err := s.store.Find(ctx, sessionToken, t)
	if err != nil {
		return err
	}
	if rec.Verified {
		return nil
	}
	if rec.Expired(s.now()) {
		return domain.ErrOTPExpired
	}
	if rec.Identifier != identifier {
		return domain.ErrOTPIdentifierMismatch
	}
	if rec.Attempts >= s.config.MaxAttempts {
		return domain.ErrOTPMaxAttempts
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, sessionToken, t)
		if err != nil {
			return err
		}
		if attempts >= s.config.MaxAttempts {
			return domain.ErrOTPMaxAttempts
		}
		return domain.ErrOTPInvalid
	}

	return s.store.MarkVerified(ctx, sessionToken, t)
}

// Resend implements domain.OTPService. The record is overwritten with a new
// code and expiry, which resets attempts.
func (s *OTPServiceImpl) Resend(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPSession, error) {
	rec, err := s.store.Find(ctx, sessionToken, t)
	if err != nil {
		return nil, err
	}
	if rec.Verified {
		return nil, domain.ErrOTPAlreadyVerified
	}
	if err := s.checkCooldown(ctx, sessionToken, t); err != nil {
		return nil, err
	}

	code, err := s.GenerateCode()
	if err != nil {
		return nil, err
	}
	ttl := s.config.TTL
	if rec.Purpose == domain.PurposeLogin {
		ttl = s.config.LoginTTL
	}
	binding := domain.SessionBinding{Token: sessionToken, Purpose: rec.Purpose, UserID: rec.UserID}
	fresh, err := s.Store(ctx, binding, rec.Identifier, t, code, ttl)
	if err != nil {
		return nil, err
	}

	delivered := true
	if err := s.dispatch(ctx, fresh, ttl); err != nil {
		s.log.WarnContext(ctx, "otp resend delivery failed", "channel", t, "err", err)
		delivered = false
	}
	return &domain.OTPSession{
		SessionToken: sessionToken,
		ExpiresAt:    fresh.ExpiresAt,
		Delivery:     domain.DeliveryReport{t: delivered},
	}, nil
}

func (s *OTPServiceImpl) dispatch(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	if rec.IdentifierType == domain.IdentifierEmail {
		return s.notifier.SendEmailOTP(ctx, rec.Identifier, rec.Code, ttl)
	}
	return s.notifier.SendSMSOTP(ctx, rec.Identifier, rec.Code, ttl)
}

func (s *OTPServiceImpl) cooldownKey(sessionToken string, t domain.IdentifierType) string {
	return "auth:otp:cooldown:" + sessionToken + ":" + string(t)
}

// checkCooldown claims the resend slot. A degraded cache skips the check.
func (s *OTPServiceImpl) checkCooldown(ctx context.Context, sessionToken string, t domain.IdentifierType) error {
	if s.config.ResendCooldown <= 0 {
		return nil
	}
	key := s.cooldownKey(sessionToken, t)
	ok, err := s.cache.SetNX(ctx, key, 1, s.config.ResendCooldown).Result()
	if err != nil {
		s.log.WarnContext(ctx, "resend cooldown skipped, cache degraded", "err", cache.Degraded(err))
		return nil
	}
	if ok {
		return nil
	}

	remaining, err := s.cache.TTL(ctx, key).Result()
	if err != nil || remaining <= 0 {
		remaining = s.config.ResendCooldown
	}
	return &domain.CooldownError{RetryAfterSeconds: ceilSeconds(remaining)}
}

func (s *OTPServiceImpl) armCooldown(ctx context.Context, sessionToken string, t domain.IdentifierType) {
	if s.config.ResendCooldown <= 0 {
		return
	}
	err := s.cache.Set(ctx, s.cooldownKey(sessionToken, t), 1, s.config.ResendCooldown).Err()
	if err != nil {
		s.log.WarnContext(ctx, "resend cooldown not armed", "err", cache.Degraded(err))
	}
}

func ceilSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// IsCooldown reports whether err is a resend cooldown and returns the wait
func IsCooldown(err error) (int64, bool) {
	var cd *domain.CooldownError
	if errors.As(err, &cd) {
		return cd.RetryAfterSeconds, true
	}
	return 0, false
}

var _ domain.OTPService = (*OTPServiceImpl)(nil)
