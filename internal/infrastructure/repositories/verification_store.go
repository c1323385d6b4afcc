package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
)

// TieredVerificationStore writes every OTP record to the durable store and
// mirrors it into the cache. Single-channel reads are served from the cache
// and fall back to the durable store on a miss or when the cache is degraded.
// Session reads always take channel presence and the verified flag from the
// durable rows. A failed mirror write drops the cached session so reads fall
// through to the durable store.
type TieredVerificationStore struct {
	cache   domain.VerificationStore
	durable domain.VerificationStore
	log     *slog.Logger
}

// NewTieredVerificationStore composes a cache mirror over a durable store
func NewTieredVerificationStore(cacheStore, durable domain.VerificationStore, log *slog.Logger) *TieredVerificationStore {
	return &TieredVerificationStore{cache: cacheStore, durable: durable, log: log}
}

// Save implements domain.VerificationStore
func (s *TieredVerificationStore) Save(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	if err := s.durable.Save(ctx, rec, ttl); err != nil {
		return err
	}
	if err := s.cache.Save(ctx, rec, ttl); err != nil {
		s.degraded("save", rec.IdentifierType, err)
		s.invalidate(ctx, rec.SessionToken)
	}
	return nil
}

// Find implements domain.VerificationStore
func (s *TieredVerificationStore) Find(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPRecord, error) {
	rec, err := s.cache.Find(ctx, sessionToken, t)
	if err == nil {
		return rec, nil
	}
	if !IsMiss(err) {
		s.degraded("find", t, err)
	}
	return s.durable.Find(ctx, sessionToken, t)
}

// FindSession implements domain.VerificationStore. The durable rows decide
// which channels exist and whether they are verified; the cache contributes
// its attempt count when it is ahead.
func (s *TieredVerificationStore) FindSession(ctx context.Context, sessionToken string) ([]*domain.OTPRecord, error) {
	cached, err := s.cache.FindSession(ctx, sessionToken)
	if err != nil {
		s.degraded("find_session", "", err)
		return s.durable.FindSession(ctx, sessionToken)
	}

	durable, err := s.durable.FindSession(ctx, sessionToken)
	if err != nil {
		if len(cached) == 0 {
			return nil, err
		}
		s.log.Warn("durable verification read failed, serving cache", "err", err)
		return cached, nil
	}
	return mergeSession(durable, cached), nil
}

func mergeSession(durable, cached []*domain.OTPRecord) []*domain.OTPRecord {
	byChannel := make(map[domain.IdentifierType]*domain.OTPRecord, len(cached))
	for _, rec := range cached {
		byChannel[rec.IdentifierType] = rec
	}
	for _, rec := range durable {
		if c, ok := byChannel[rec.IdentifierType]; ok && c.Attempts > rec.Attempts {
			rec.Attempts = c.Attempts
		}
	}
	return durable
}

// IncrementAttempts implements domain.VerificationStore. Both tiers are
// incremented; the cache count is authoritative while it holds the record.
func (s *TieredVerificationStore) IncrementAttempts(ctx context.Context, sessionToken string, t domain.IdentifierType) (int, error) {
	durableCount, durableErr := s.durable.IncrementAttempts(ctx, sessionToken, t)

	cacheCount, err := s.cache.IncrementAttempts(ctx, sessionToken, t)
	if err == nil {
		if durableErr != nil && !IsMiss(durableErr) {
			s.log.Warn("durable attempt counter lagging", "channel", t, "err", durableErr)
		}
		if durableCount > cacheCount {
			return durableCount, nil
		}
		return cacheCount, nil
	}
	if !IsMiss(err) {
		s.degraded("increment_attempts", t, err)
	}
	return durableCount, durableErr
}

// MarkVerified implements domain.VerificationStore
func (s *TieredVerificationStore) MarkVerified(ctx context.Context, sessionToken string, t domain.IdentifierType) error {
	if err := s.durable.MarkVerified(ctx, sessionToken, t); err != nil {
		return err
	}
	if err := s.cache.MarkVerified(ctx, sessionToken, t); err != nil && !IsMiss(err) {
		s.degraded("mark_verified", t, err)
		s.invalidate(ctx, sessionToken)
	}
	return nil
}

// DeleteSession implements domain.VerificationStore
func (s *TieredVerificationStore) DeleteSession(ctx context.Context, sessionToken string) error {
	if err := s.cache.DeleteSession(ctx, sessionToken); err != nil {
		s.degraded("delete_session", "", err)
	}
	return s.durable.DeleteSession(ctx, sessionToken)
}

// ClaimSession implements domain.VerificationStore. The durable delete decides
// the winner; the cache mirror may already be partial, so its count is only
// logged.
func (s *TieredVerificationStore) ClaimSession(ctx context.Context, sessionToken string) (bool, error) {
	cached, cacheErr := s.cache.ClaimSession(ctx, sessionToken)
	if cacheErr != nil {
		s.degraded("claim_session", "", cacheErr)
	}
	claimed, err := s.durable.ClaimSession(ctx, sessionToken)
	if err != nil {
		return false, err
	}
	if cacheErr == nil && claimed != cached {
		s.log.Debug("verification mirror out of step at claim", "durable", claimed, "cache", cached)
	}
	return claimed, nil
}

// invalidate drops a cached session whose mirror may now be stale
func (s *TieredVerificationStore) invalidate(ctx context.Context, sessionToken string) {
	if err := s.cache.DeleteSession(context.WithoutCancel(ctx), sessionToken); err != nil {
		s.degraded("invalidate", "", err)
	}
}

func (s *TieredVerificationStore) degraded(op string, t domain.IdentifierType, err error) {
	level := slog.LevelWarn
	if !cache.IsUnavailable(err) {
		level = slog.LevelError
	}
	s.log.Log(context.Background(), level, "verification cache degraded, using durable store",
		"op", op, "channel", t, "err", err)
}

var _ domain.VerificationStore = (*TieredVerificationStore)(nil)
