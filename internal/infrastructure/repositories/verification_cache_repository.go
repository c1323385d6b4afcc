package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
)

// Hash fields of a cached OTP record
const (
	fieldIdentifier = "identifier"
	fieldType       = "type"
	fieldCode       = "code"
	fieldAttempts   = "attempts"
	fieldVerified   = "verified"
	fieldExpiresAt  = "expires_at"
	fieldUserID     = "user_id"
	fieldPurpose    = "purpose"
)

// Both scripts touch the hash only when it still exists, so an expired record
// is never resurrected as a bare counter without a TTL.
var (
	incrAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)
	markVerifiedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'verified', '1')
return 1
`)
)

// VerificationCacheRepository stores OTP records as Redis hashes that expire
// with the code.
type VerificationCacheRepository struct {
	cache  *cache.Cache
	prefix string
}

// NewVerificationCacheRepository creates a Redis-backed verification store
func NewVerificationCacheRepository(c *cache.Cache) *VerificationCacheRepository {
	return &VerificationCacheRepository{cache: c, prefix: "auth:otp:"}
}

// Key returns the hash key for a session channel
func (r *VerificationCacheRepository) Key(sessionToken string, t domain.IdentifierType) string {
	return r.prefix + sessionToken + ":" + string(t)
}

// Save implements domain.VerificationStore
func (r *VerificationCacheRepository) Save(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	key := r.Key(rec.SessionToken, rec.IdentifierType)
	fields := map[string]interface{}{
		fieldIdentifier: rec.Identifier,
		fieldType:       string(rec.IdentifierType),
		fieldCode:       rec.Code,
		fieldAttempts:   rec.Attempts,
		fieldVerified:   boolField(rec.Verified),
		fieldExpiresAt:  rec.ExpiresAt.UnixNano(),
		fieldPurpose:    string(rec.Purpose),
	}
	if rec.UserID != nil {
		fields[fieldUserID] = *rec.UserID
	}

	_, err := r.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return cache.Degraded(err)
}

// Find implements domain.VerificationStore
func (r *VerificationCacheRepository) Find(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPRecord, error) {
	values, err := r.cache.HGetAll(ctx, r.Key(sessionToken, t)).Result()
	if err != nil {
		return nil, cache.Degraded(err)
	}
	if len(values) == 0 {
		return nil, domain.ErrOTPNotFound
	}
	return hashToRecord(sessionToken, values)
}

// FindSession implements domain.VerificationStore
func (r *VerificationCacheRepository) FindSession(ctx context.Context, sessionToken string) ([]*domain.OTPRecord, error) {
	channels := []domain.IdentifierType{domain.IdentifierEmail, domain.IdentifierPhone}
	cmds := make([]*redis.MapStringStringCmd, len(channels))
	_, err := r.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, t := range channels {
			cmds[i] = pipe.HGetAll(ctx, r.Key(sessionToken, t))
		}
		return nil
	})
	if err != nil {
		return nil, cache.Degraded(err)
	}

	var records []*domain.OTPRecord
	for _, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			continue
		}
		rec, err := hashToRecord(sessionToken, values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// IncrementAttempts implements domain.VerificationStore with HINCRBY
func (r *VerificationCacheRepository) IncrementAttempts(ctx context.Context, sessionToken string, t domain.IdentifierType) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, r.cache.Client, []string{r.Key(sessionToken, t)}).Int64()
	if err != nil {
		return 0, cache.Degraded(err)
	}
	if n < 0 {
		return 0, domain.ErrOTPNotFound
	}
	return int(n), nil
}

// MarkVerified implements domain.VerificationStore
func (r *VerificationCacheRepository) MarkVerified(ctx context.Context, sessionToken string, t domain.IdentifierType) error {
	n, err := markVerifiedScript.Run(ctx, r.cache.Client, []string{r.Key(sessionToken, t)}).Int64()
	if err != nil {
		return cache.Degraded(err)
	}
	if n == 0 {
		return domain.ErrOTPNotFound
	}
	return nil
}

// DeleteSession implements domain.VerificationStore
func (r *VerificationCacheRepository) DeleteSession(ctx context.Context, sessionToken string) error {
	err := r.cache.Del(ctx,
		r.Key(sessionToken, domain.IdentifierEmail),
		r.Key(sessionToken, domain.IdentifierPhone),
	).Err()
	return cache.Degraded(err)
}

// ClaimSession implements domain.VerificationStore
func (r *VerificationCacheRepository) ClaimSession(ctx context.Context, sessionToken string) (bool, error) {
	n, err := r.cache.Del(ctx,
		r.Key(sessionToken, domain.IdentifierEmail),
		r.Key(sessionToken, domain.IdentifierPhone),
	).Result()
	if err != nil {
		return false, cache.Degraded(err)
	}
	return n > 0, nil
}

func hashToRecord(sessionToken string, values map[string]string) (*domain.OTPRecord, error) {
	attempts, err := strconv.Atoi(values[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("corrupt otp record attempts: %w", err)
	}
	expiresAt, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt otp record expiry: %w", err)
	}
	rec := &domain.OTPRecord{
		SessionToken:   sessionToken,
		Identifier:     values[fieldIdentifier],
		IdentifierType: domain.IdentifierType(values[fieldType]),
		Code:           values[fieldCode],
		Attempts:       attempts,
		Verified:       values[fieldVerified] == "1",
		ExpiresAt:      time.Unix(0, expiresAt),
		Purpose:        domain.SessionPurpose(values[fieldPurpose]),
	}
	if raw, ok := values[fieldUserID]; ok && raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt otp record user id: %w", err)
		}
		uid := uint(id)
		rec.UserID = &uid
	}
	return rec, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// IsMiss reports whether err means the record does not exist
func IsMiss(err error) bool {
	return errors.Is(err, domain.ErrOTPNotFound)
}

var _ domain.VerificationStore = (*VerificationCacheRepository)(nil)
