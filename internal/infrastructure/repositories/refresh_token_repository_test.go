package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

func seedRefreshToken(t *testing.T, repo *RefreshTokenRepositoryImpl, jti string, userID uint, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.RefreshTokenRecord{
		ID:        jti,
		UserID:    userID,
		TokenHash: "deadbeef",
		ExpiresAt: expiresAt,
	}))
}

func TestRefreshTokenRepository_Claim(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		seed    func(repo *RefreshTokenRepositoryImpl)
		userID  uint
		jti     string
		claimed bool
	}{
		{
			name:    "live token is claimed",
			seed:    func(repo *RefreshTokenRepositoryImpl) { seedRefreshToken(t, repo, "jti-1", 1, now.Add(time.Hour)) },
			userID:  1,
			jti:     "jti-1",
			claimed: true,
		},
		{
			name:    "wrong user cannot claim",
			seed:    func(repo *RefreshTokenRepositoryImpl) { seedRefreshToken(t, repo, "jti-1", 1, now.Add(time.Hour)) },
			userID:  2,
			jti:     "jti-1",
			claimed: false,
		},
		{
			name:    "expired token cannot be claimed",
			seed:    func(repo *RefreshTokenRepositoryImpl) { seedRefreshToken(t, repo, "jti-1", 1, now.Add(-time.Minute)) },
			userID:  1,
			jti:     "jti-1",
			claimed: false,
		},
		{
			name: "revoked token cannot be claimed",
			seed: func(repo *RefreshTokenRepositoryImpl) {
				seedRefreshToken(t, repo, "jti-1", 1, now.Add(time.Hour))
				require.NoError(t, repo.Revoke(context.Background(), 1, "jti-1"))
			},
			userID:  1,
			jti:     "jti-1",
			claimed: false,
		},
		{
			name:    "unknown token",
			seed:    func(repo *RefreshTokenRepositoryImpl) {},
			userID:  1,
			jti:     "missing",
			claimed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRefreshTokenRepository(setupTestDB(t))
			tt.seed(repo)

			claimed, err := repo.Claim(context.Background(), tt.userID, tt.jti, now)
			require.NoError(t, err)
			assert.Equal(t, tt.claimed, claimed)
		})
	}
}

func TestRefreshTokenRepository_ClaimIsSingleUse(t *testing.T) {
	repo := NewRefreshTokenRepository(setupTestDB(t))
	seedRefreshToken(t, repo, "jti-race", 7, time.Now().Add(time.Hour))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Claim(context.Background(), 7, "jti-race", time.Now())
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins, "exactly one concurrent claim may succeed")
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	repo := NewRefreshTokenRepository(setupTestDB(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	seedRefreshToken(t, repo, "a", 1, exp)
	seedRefreshToken(t, repo, "b", 1, exp)
	seedRefreshToken(t, repo, "c", 2, exp)

	n, err := repo.RevokeAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, jti := range []string{"a", "b"} {
		rec, err := repo.FindByID(ctx, jti)
		require.NoError(t, err)
		assert.True(t, rec.Revoked, "token %s should be revoked", jti)
	}
	other, err := repo.FindByID(ctx, "c")
	require.NoError(t, err)
	assert.False(t, other.Revoked, "other users' tokens are untouched")
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	repo := NewRefreshTokenRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()
	seedRefreshToken(t, repo, "old", 1, now.Add(-time.Hour))
	seedRefreshToken(t, repo, "live", 1, now.Add(time.Hour))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByID(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = repo.FindByID(ctx, "live")
	assert.NoError(t, err)
}
