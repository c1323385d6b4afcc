package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
)

const (
	refreshKeyPrefix   = "auth:refresh:"
	blacklistKeyPrefix = "auth:blacklist:"
)

// TokenLedgerImpl implements domain.TokenLedger. The cache holds one
// existence key per live refresh token and one key per blacklisted access
// token; the durable store keeps a hashed row per refresh token.
type TokenLedgerImpl struct {
	cache *cache.Cache
	repo  domain.RefreshTokenRepository
	log   *slog.Logger
	now   func() time.Time
}

// NewTokenLedger creates a token ledger
func NewTokenLedger(c *cache.Cache, repo domain.RefreshTokenRepository, log *slog.Logger) *TokenLedgerImpl {
	return &TokenLedgerImpl{
		cache: c,
		repo:  repo,
		log:   log.With("component", "token_ledger"),
		now:   time.Now,
	}
}

// RefreshKey is the cache key marking a refresh token as live
func RefreshKey(userID uint, jti string) string {
	return refreshKeyPrefix + strconv.FormatUint(uint64(userID), 10) + ":" + jti
}

// BlacklistKey is the cache key marking an access token as revoked
func BlacklistKey(jti string) string {
	return blacklistKeyPrefix + jti
}

// HashToken returns the hex SHA-256 of a signed token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Record implements domain.TokenLedger. The durable row is required; the
// cache key is best-effort.
func (l *TokenLedgerImpl) Record(ctx context.Context, userID uint, jti, refreshToken string, expiresAt time.Time) error {
	if err := l.repo.Create(ctx, &domain.RefreshTokenRecord{
		ID:        jti,
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: expiresAt,
	}); err != nil {
		return err
	}

	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.cache.Set(ctx, RefreshKey(userID, jti), 1, ttl).Err(); err != nil {
		l.degraded(ctx, "record", err)
	}
	return nil
}

// IsRefreshTokenValid implements domain.TokenLedger. An unreachable cache
// answers valid.
func (l *TokenLedgerImpl) IsRefreshTokenValid(ctx context.Context, userID uint, jti string) bool {
	n, err := l.cache.Exists(ctx, RefreshKey(userID, jti)).Result()
	if err != nil {
		l.degraded(ctx, "is_refresh_token_valid", err)
		return true
	}
	return n == 1
}

// IsRefreshTokenValidStrict implements domain.TokenLedger. An unreachable
// cache defers to the durable row.
func (l *TokenLedgerImpl) IsRefreshTokenValidStrict(ctx context.Context, userID uint, jti string) (bool, error) {
	n, err := l.cache.Exists(ctx, RefreshKey(userID, jti)).Result()
	if err == nil {
		return n == 1, nil
	}
	l.degraded(ctx, "is_refresh_token_valid_strict", err)

	rec, err := l.repo.FindByID(ctx, jti)
	if err != nil {
		if isAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return rec.UserID == userID && !rec.Revoked && l.now().Before(rec.ExpiresAt), nil
}

// Consume implements domain.TokenLedger. Exactly one caller can consume a
// given jti: the cache DEL must remove the key and the durable claim must
// flip the row.
func (l *TokenLedgerImpl) Consume(ctx context.Context, userID uint, jti string) error {
	n, err := l.cache.Del(ctx, RefreshKey(userID, jti)).Result()
	switch {
	case err != nil:
		l.degraded(ctx, "consume", err)
	case n != 1:
		return domain.ErrTokenRevoked
	}

	claimed, err := l.repo.Claim(ctx, userID, jti, l.now())
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrTokenRevoked
	}
	return nil
}

// Revoke implements domain.TokenLedger
func (l *TokenLedgerImpl) Revoke(ctx context.Context, userID uint, jti string) error {
	if err := l.cache.Del(ctx, RefreshKey(userID, jti)).Err(); err != nil {
		l.degraded(ctx, "revoke", err)
	}
	return l.repo.Revoke(ctx, userID, jti)
}

// RevokeAll implements domain.TokenLedger
func (l *TokenLedgerImpl) RevokeAll(ctx context.Context, userID uint) error {
	pattern := refreshKeyPrefix + strconv.FormatUint(uint64(userID), 10) + ":*"
	iter := l.cache.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		l.degraded(ctx, "revoke_all_scan", err)
	} else if len(keys) > 0 {
		if err := l.cache.Del(ctx, keys...).Err(); err != nil {
			l.degraded(ctx, "revoke_all_del", err)
		}
	}

	revoked, err := l.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	l.log.InfoContext(ctx, "refresh tokens revoked", "user_id", userID, "durable", revoked, "cached", len(keys))
	return nil
}

// BlacklistAccessToken implements domain.TokenLedger. A non-positive ttl
// means the token has already expired and nothing is written.
func (l *TokenLedgerImpl) BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || jti == "" {
		return nil
	}
	if err := l.cache.Set(ctx, BlacklistKey(jti), 1, ttl).Err(); err != nil {
		l.degraded(ctx, "blacklist", err)
	}
	return nil
}

// IsAccessTokenBlacklisted implements domain.TokenLedger. An unreachable
// cache answers not blacklisted.
func (l *TokenLedgerImpl) IsAccessTokenBlacklisted(ctx context.Context, jti string) bool {
	n, err := l.cache.Exists(ctx, BlacklistKey(jti)).Result()
	if err != nil {
		l.degraded(ctx, "is_access_token_blacklisted", err)
		return false
	}
	return n == 1
}

func (l *TokenLedgerImpl) degraded(ctx context.Context, op string, err error) {
	l.log.WarnContext(ctx, "token cache degraded", "op", op, "err", cache.Degraded(err))
}

var _ domain.TokenLedger = (*TokenLedgerImpl)(nil)
