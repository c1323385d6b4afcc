package services

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

func recordToken(t *testing.T, env *testEnv, userID uint, jti string) {
	t.Helper()
	err := env.ledger.Record(context.Background(), userID, jti, "signed-"+jti, env.clock.Now().Add(time.Hour))
	require.NoError(t, err)
}

func TestTokenLedger_RecordAndValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "jti-1")

	assert.True(t, env.ledger.IsRefreshTokenValid(ctx, 1, "jti-1"))
	assert.False(t, env.ledger.IsRefreshTokenValid(ctx, 2, "jti-1"), "key is scoped by user")
	assert.False(t, env.ledger.IsRefreshTokenValid(ctx, 1, "jti-2"))

	ttl := env.mr.TTL(RefreshKey(1, "jti-1"))
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 2)

	rec, err := env.refresh.FindByID(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, HashToken("signed-jti-1"), rec.TokenHash)
	assert.NotEqual(t, "signed-jti-1", rec.TokenHash)
}

func TestTokenLedger_FailOpenWhenCacheDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "jti-1")
	require.NoError(t, env.ledger.Revoke(ctx, 1, "jti-1"))
	env.mr.Close()

	assert.True(t, env.ledger.IsRefreshTokenValid(ctx, 1, "jti-1"), "unknown is treated as valid")

	valid, err := env.ledger.IsRefreshTokenValidStrict(ctx, 1, "jti-1")
	require.NoError(t, err)
	assert.False(t, valid, "strict check consults the durable row")
}

func TestTokenLedger_StrictFallsBackToDurable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "jti-1")
	env.mr.Close()

	valid, err := env.ledger.IsRefreshTokenValidStrict(ctx, 1, "jti-1")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = env.ledger.IsRefreshTokenValidStrict(ctx, 2, "jti-1")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = env.ledger.IsRefreshTokenValidStrict(ctx, 1, "unknown")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTokenLedger_ConsumeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "jti-1")

	require.NoError(t, env.ledger.Consume(ctx, 1, "jti-1"))
	assert.ErrorIs(t, env.ledger.Consume(ctx, 1, "jti-1"), domain.ErrTokenRevoked)
	assert.False(t, env.ledger.IsRefreshTokenValid(ctx, 1, "jti-1"))

	rec, err := env.refresh.FindByID(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, rec.Revoked)
}

func TestTokenLedger_ConcurrentConsume(t *testing.T) {
	env := newTestEnv(t)
	recordToken(t, env, 1, "jti-race")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if env.ledger.Consume(context.Background(), 1, "jti-race") == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestTokenLedger_ConsumeWithCacheDownUsesDurableClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "jti-1")
	env.mr.Close()

	require.NoError(t, env.ledger.Consume(ctx, 1, "jti-1"))
	assert.ErrorIs(t, env.ledger.Consume(ctx, 1, "jti-1"), domain.ErrTokenRevoked)
}

func TestTokenLedger_RevokeAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recordToken(t, env, 1, "a")
	recordToken(t, env, 1, "b")
	recordToken(t, env, 2, "c")

	require.NoError(t, env.ledger.RevokeAll(ctx, 1))

	assert.False(t, env.ledger.IsRefreshTokenValid(ctx, 1, "a"))
	assert.False(t, env.ledger.IsRefreshTokenValid(ctx, 1, "b"))
	assert.True(t, env.ledger.IsRefreshTokenValid(ctx, 2, "c"))
	assert.ErrorIs(t, env.ledger.Consume(ctx, 1, "a"), domain.ErrTokenRevoked)
}

func TestTokenLedger_Blacklist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.BlacklistAccessToken(ctx, "jti-1", 5*time.Minute))
	assert.True(t, env.ledger.IsAccessTokenBlacklisted(ctx, "jti-1"))
	assert.False(t, env.ledger.IsAccessTokenBlacklisted(ctx, "jti-2"))
	assert.InDelta(t, (5 * time.Minute).Seconds(), env.mr.TTL(BlacklistKey("jti-1")).Seconds(), 1)

	env.mr.FastForward(5 * time.Minute)
	assert.False(t, env.ledger.IsAccessTokenBlacklisted(ctx, "jti-1"), "entry dies with the token")

	require.NoError(t, env.ledger.BlacklistAccessToken(ctx, "jti-3", -time.Second))
	assert.False(t, env.mr.Exists(BlacklistKey("jti-3")), "expired tokens are not written")

	env.mr.Close()
	assert.False(t, env.ledger.IsAccessTokenBlacklisted(ctx, "jti-1"))
	assert.NoError(t, env.ledger.BlacklistAccessToken(ctx, "jti-4", time.Minute))
}
