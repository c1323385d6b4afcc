package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTieredVerificationStore_Contract(t *testing.T) {
	verificationStoreContract(t, func(t *testing.T) domain.VerificationStore {
		c, _ := setupTestRedis(t)
		return NewTieredVerificationStore(
			NewVerificationCacheRepository(c),
			NewVerificationCodeRepository(setupTestDB(t)),
			discardLogger(),
		)
	})
}

func TestTieredVerificationStore_WritesBothTiers(t *testing.T) {
	c, _ := setupTestRedis(t)
	cacheRepo := NewVerificationCacheRepository(c)
	durable := NewVerificationCodeRepository(setupTestDB(t))
	store := NewTieredVerificationStore(cacheRepo, durable, discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))
	require.NoError(t, store.MarkVerified(ctx, "tok", domain.IdentifierEmail))

	fromCache, err := cacheRepo.Find(ctx, "tok", domain.IdentifierEmail)
	require.NoError(t, err)
	assert.True(t, fromCache.Verified)

	fromDB, err := durable.Find(ctx, "tok", domain.IdentifierEmail)
	require.NoError(t, err)
	assert.True(t, fromDB.Verified)
}

func TestTieredVerificationStore_CacheDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	durable := NewVerificationCodeRepository(setupTestDB(t))
	store := NewTieredVerificationStore(NewVerificationCacheRepository(c), durable, discardLogger())
	ctx := context.Background()

	mr.Close()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierPhone, "+10000000001"), time.Minute),
		"cache outage must not fail the write")

	n, err := store.IncrementAttempts(ctx, "tok", domain.IdentifierPhone)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Find(ctx, "tok", domain.IdentifierPhone)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, store.MarkVerified(ctx, "tok", domain.IdentifierPhone))
	records, err := store.FindSession(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Verified)
}

func TestTieredVerificationStore_CacheMissFallsBackToDurable(t *testing.T) {
	c, mr := setupTestRedis(t)
	cacheRepo := NewVerificationCacheRepository(c)
	store := NewTieredVerificationStore(cacheRepo, NewVerificationCodeRepository(setupTestDB(t)), discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))
	mr.FlushAll()

	got, err := store.Find(ctx, "tok", domain.IdentifierEmail)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Identifier)
}

// failingMirror is a cache tier whose writes fail after the record is cached
type failingMirror struct {
	*VerificationCacheRepository
	failSave, failMark bool
}

func (f *failingMirror) Save(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	if f.failSave {
		return domain.ErrCacheUnavailable
	}
	return f.VerificationCacheRepository.Save(ctx, rec, ttl)
}

func (f *failingMirror) MarkVerified(ctx context.Context, sessionToken string, t domain.IdentifierType) error {
	if f.failMark {
		return domain.ErrCacheUnavailable
	}
	return f.VerificationCacheRepository.MarkVerified(ctx, sessionToken, t)
}

func TestTieredVerificationStore_PartialMirrorUsesDurableRows(t *testing.T) {
	c, mr := setupTestRedis(t)
	cacheRepo := NewVerificationCacheRepository(c)
	store := NewTieredVerificationStore(cacheRepo, NewVerificationCodeRepository(setupTestDB(t)), discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))
	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierPhone, "+10000000001"), time.Minute))
	mr.Del(cacheRepo.Key("tok", domain.IdentifierPhone))

	require.NoError(t, store.MarkVerified(ctx, "tok", domain.IdentifierEmail))
	require.NoError(t, store.MarkVerified(ctx, "tok", domain.IdentifierPhone))

	records, err := store.FindSession(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.Verified, "channel %s", rec.IdentifierType)
	}
}

func TestTieredVerificationStore_AttemptsTakeHigherCount(t *testing.T) {
	c, _ := setupTestRedis(t)
	cacheRepo := NewVerificationCacheRepository(c)
	store := NewTieredVerificationStore(cacheRepo, NewVerificationCodeRepository(setupTestDB(t)), discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))
	_, err := cacheRepo.IncrementAttempts(ctx, "tok", domain.IdentifierEmail)
	require.NoError(t, err)

	records, err := store.FindSession(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Attempts)
}

func TestTieredVerificationStore_FailedMirrorWriteDropsCachedSession(t *testing.T) {
	tests := []struct {
		name   string
		mirror func(*VerificationCacheRepository) *failingMirror
		write  func(ctx context.Context, s *TieredVerificationStore) error
	}{
		{
			name: "mark verified",
			mirror: func(r *VerificationCacheRepository) *failingMirror {
				return &failingMirror{VerificationCacheRepository: r, failMark: true}
			},
			write: func(ctx context.Context, s *TieredVerificationStore) error {
				return s.MarkVerified(ctx, "tok", domain.IdentifierEmail)
			},
		},
		{
			name: "resend save",
			mirror: func(r *VerificationCacheRepository) *failingMirror {
				return &failingMirror{VerificationCacheRepository: r, failSave: true}
			},
			write: func(ctx context.Context, s *TieredVerificationStore) error {
				rec := newTestRecord("tok", domain.IdentifierEmail, "a@x.com")
				rec.Code = "654321"
				return s.Save(ctx, rec, time.Minute)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mr := setupTestRedis(t)
			cacheRepo := NewVerificationCacheRepository(c)
			durable := NewVerificationCodeRepository(setupTestDB(t))
			ctx := context.Background()

			require.NoError(t, NewTieredVerificationStore(cacheRepo, durable, discardLogger()).
				Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))

			store := NewTieredVerificationStore(tt.mirror(cacheRepo), durable, discardLogger())
			require.NoError(t, tt.write(ctx, store))
			assert.False(t, mr.Exists(cacheRepo.Key("tok", domain.IdentifierEmail)))

			want, err := durable.Find(ctx, "tok", domain.IdentifierEmail)
			require.NoError(t, err)
			got, err := store.Find(ctx, "tok", domain.IdentifierEmail)
			require.NoError(t, err)
			assert.Equal(t, want.Code, got.Code)
			assert.Equal(t, want.Verified, got.Verified)
		})
	}
}

func TestTieredVerificationStore_DeletedSessionIgnoresStaleMirror(t *testing.T) {
	c, _ := setupTestRedis(t)
	cacheRepo := NewVerificationCacheRepository(c)
	durable := NewVerificationCodeRepository(setupTestDB(t))
	store := NewTieredVerificationStore(cacheRepo, durable, discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestRecord("tok", domain.IdentifierEmail, "a@x.com"), time.Minute))
	require.NoError(t, durable.DeleteSession(ctx, "tok"))

	records, err := store.FindSession(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, records)
}
