package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// VerificationSessionServiceImpl groups OTP records under one session token
type VerificationSessionServiceImpl struct {
	otp      domain.OTPService
	store    domain.VerificationStore
	notifier domain.OTPNotifier
	runner   *BestEffortRunner
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewVerificationSessionService creates a session manager; ttl applies to
// registration codes.
func NewVerificationSessionService(
	otp domain.OTPService,
	store domain.VerificationStore,
	notifier domain.OTPNotifier,
	runner *BestEffortRunner,
	ttl time.Duration,
	log *slog.Logger,
) *VerificationSessionServiceImpl {
	return &VerificationSessionServiceImpl{
		otp:      otp,
		store:    store,
		notifier: notifier,
		runner:   runner,
		ttl:      ttl,
		log:      log.With("component", "verification_session"),
		now:      time.Now,
	}
}

// NewSessionToken returns 32 random bytes, hex encoded
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SendDualOTP implements domain.VerificationSessionService
func (s *VerificationSessionServiceImpl) SendDualOTP(ctx context.Context, email, phone string, userID *uint) (*domain.OTPSession, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}
	binding := domain.SessionBinding{Token: token, Purpose: domain.PurposeRegistration, UserID: userID}

	emailCode, err := s.otp.GenerateCode()
	if err != nil {
		return nil, err
	}
	phoneCode, err := s.otp.GenerateCode()
	if err != nil {
		return nil, err
	}

	var emailRec, phoneRec *domain.OTPRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emailRec, err = s.otp.Store(gctx, binding, email, domain.IdentifierEmail, emailCode, s.ttl)
		return err
	})
	g.Go(func() error {
		var err error
		phoneRec, err = s.otp.Store(gctx, binding, phone, domain.IdentifierPhone, phoneCode, s.ttl)
		return err
	})
	if err := g.Wait(); err != nil {
		// a half-written session must not be usable
		if cleanupErr := s.store.DeleteSession(context.WithoutCancel(ctx), token); cleanupErr != nil {
			s.log.ErrorContext(ctx, "failed to discard partial session", "err", cleanupErr)
		}
		return nil, err
	}

	results := s.runner.Run(ctx,
		Task{Name: string(domain.IdentifierEmail), Run: func(ctx context.Context) error {
			return s.notifier.SendEmailOTP(ctx, email, emailCode, s.ttl)
		}},
		Task{Name: string(domain.IdentifierPhone), Run: func(ctx context.Context) error {
			return s.notifier.SendSMSOTP(ctx, phone, phoneCode, s.ttl)
		}},
	)

	expiresAt := emailRec.ExpiresAt
	if phoneRec.ExpiresAt.Before(expiresAt) {
		expiresAt = phoneRec.ExpiresAt
	}
	return &domain.OTPSession{
		SessionToken: token,
		ExpiresAt:    expiresAt,
		Delivery: domain.DeliveryReport{
			domain.IdentifierEmail: results[string(domain.IdentifierEmail)],
			domain.IdentifierPhone: results[string(domain.IdentifierPhone)],
		},
	}, nil
}

// SendLoginOTP implements domain.VerificationSessionService
func (s *VerificationSessionServiceImpl) SendLoginOTP(ctx context.Context, identifier string, t domain.IdentifierType, userID uint, ttl time.Duration) (*domain.OTPSession, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}
	code, err := s.otp.GenerateCode()
	if err != nil {
		return nil, err
	}

	uid := userID
	binding := domain.SessionBinding{Token: token, Purpose: domain.PurposeLogin, UserID: &uid}
	rec, err := s.otp.Store(ctx, binding, identifier, t, code, ttl)
	if err != nil {
		return nil, err
	}

	results := s.runner.Run(ctx, Task{Name: string(t), Run: func(ctx context.Context) error {
		if t == domain.IdentifierEmail {
			return s.notifier.SendEmailOTP(ctx, identifier, code, ttl)
		}
		return s.notifier.SendSMSOTP(ctx, identifier, code, ttl)
	}})

	return &domain.OTPSession{
		SessionToken: token,
		ExpiresAt:    rec.ExpiresAt,
		Delivery:     domain.DeliveryReport{t: results[string(t)]},
	}, nil
}

// IsSessionFullyVerified implements domain.VerificationSessionService.
// Expired records count as absent.
func (s *VerificationSessionServiceImpl) IsSessionFullyVerified(ctx context.Context, sessionToken string) (*domain.SessionView, error) {
	records, err := s.store.FindSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	view := &domain.SessionView{SessionToken: sessionToken}
	live := 0
	for _, rec := range records {
		if rec.Expired(now) && !rec.Verified {
			continue
		}
		live++
		view.Purpose = rec.Purpose
		if rec.UserID != nil {
			view.UserID = rec.UserID
		}
		status := &domain.ChannelStatus{
			Identifier: rec.Identifier,
			Type:       rec.IdentifierType,
			Verified:   rec.Verified,
			ExpiresAt:  rec.ExpiresAt,
		}
		if rec.IdentifierType == domain.IdentifierEmail {
			view.Email = status
		} else {
			view.Phone = status
		}
		if view.ExpiresAt.IsZero() || rec.ExpiresAt.Before(view.ExpiresAt) {
			view.ExpiresAt = rec.ExpiresAt
		}
	}
	if live == 0 {
		return nil, nil
	}

	view.FullyVerified = fullyVerified(view)
	return view, nil
}

// Registration needs both channels; a login challenge needs its one channel.
func fullyVerified(v *domain.SessionView) bool {
	if v.Purpose == domain.PurposeLogin {
		for _, ch := range []*domain.ChannelStatus{v.Email, v.Phone} {
			if ch != nil && ch.Verified {
				return true
			}
		}
		return false
	}
	return v.Email != nil && v.Email.Verified && v.Phone != nil && v.Phone.Verified
}

// CleanupSession implements domain.VerificationSessionService
func (s *VerificationSessionServiceImpl) CleanupSession(ctx context.Context, sessionToken string) error {
	return s.store.DeleteSession(ctx, sessionToken)
}

// ClaimSession implements domain.VerificationSessionService
func (s *VerificationSessionServiceImpl) ClaimSession(ctx context.Context, sessionToken string) error {
	claimed, err := s.store.ClaimSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrSessionNotFound
	}
	return nil
}

var _ domain.VerificationSessionService = (*VerificationSessionServiceImpl)(nil)
