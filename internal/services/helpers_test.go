package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/auth"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/repositories"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/mocks"
)

const (
	testEmail    = "a@x.com"
	testPhone    = "+10000000001"
	testPassword = "Password1!"
)

// testClock is a settable time source shared by every service in a testEnv
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testEnv is the full service stack over SQLite and miniredis
type testEnv struct {
	db       *gorm.DB
	cache    *cache.Cache
	mr       *miniredis.Miniredis
	clock    *testClock
	notifier *mocks.MockOTPNotifier
	users    domain.UserRepository
	refresh  *repositories.RefreshTokenRepositoryImpl
	store    domain.VerificationStore
	otp      *OTPServiceImpl
	sessions *VerificationSessionServiceImpl
	tokens   *auth.JWTServiceImpl
	ledger   *TokenLedgerImpl
	issuer   *TokenIssuerImpl
	auth     *AuthServiceImpl
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOTPConfig() OTPConfig {
	return OTPConfig{
		Length:         6,
		TTL:            10 * time.Minute,
		LoginTTL:       90 * time.Second,
		MaxAttempts:    3,
		ResendCooldown: 60 * time.Second,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(repositories.Models()...); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func setupTestRedis(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return cache.NewCache(client), mr
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := discardLogger()
	env := &testEnv{
		db:       setupTestDB(t),
		clock:    &testClock{now: time.Now()},
		notifier: mocks.NewMockOTPNotifier(),
	}
	env.cache, env.mr = setupTestRedis(t)

	env.users = repositories.NewUserRepository(env.db)
	env.refresh = repositories.NewRefreshTokenRepository(env.db)
	env.store = repositories.NewTieredVerificationStore(
		repositories.NewVerificationCacheRepository(env.cache),
		repositories.NewVerificationCodeRepository(env.db),
		log,
	)

	env.otp = NewOTPService(env.store, env.cache, env.notifier, testOTPConfig(), log)
	env.otp.now = env.clock.Now
	env.sessions = NewVerificationSessionService(env.otp, env.store, env.notifier,
		NewBestEffortRunner(time.Second, log), testOTPConfig().TTL, log)
	env.sessions.now = env.clock.Now

	env.tokens = auth.NewJWTService("test-secret-at-least-16-bytes", "sentinel-test", 15*time.Minute, 7*24*time.Hour)
	env.ledger = NewTokenLedger(env.cache, env.refresh, log)
	env.ledger.now = env.clock.Now
	env.issuer = NewTokenIssuer(env.tokens, env.ledger)

	authSvc, err := NewAuthService(
		env.users,
		auth.NewPasswordServiceWithCost(bcrypt.MinCost),
		env.sessions,
		env.otp,
		env.issuer,
		env.tokens,
		env.ledger,
		NewAuditLogger(log),
		testOTPConfig().LoginTTL,
		log,
	)
	if err != nil {
		t.Fatalf("failed to build auth service: %v", err)
	}
	authSvc.now = env.clock.Now
	env.auth = authSvc
	return env
}

// advance moves the service clock and the cache clock together
func (e *testEnv) advance(d time.Duration) {
	e.clock.Advance(d)
	e.mr.FastForward(d)
}

// verifiedSession runs the registration flow up to FULLY_VERIFIED
func (e *testEnv) verifiedSession(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	session, err := e.auth.Register(ctx, testEmail, testPhone)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.auth.VerifyOTP(ctx, session.SessionToken, testEmail, domain.IdentifierEmail, e.notifier.CodeFor(testEmail)); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if _, err := e.auth.VerifyOTP(ctx, session.SessionToken, testPhone, domain.IdentifierPhone, e.notifier.CodeFor(testPhone)); err != nil {
		t.Fatalf("verify phone: %v", err)
	}
	return session.SessionToken
}

// onboardedUser registers, verifies and onboards the test user
func (e *testEnv) onboardedUser(t *testing.T) *domain.AuthResult {
	t.Helper()

	result, err := e.auth.CompleteOnboarding(context.Background(), e.verifiedSession(t), domain.OnboardingProfile{
		FullName: "Alice Example",
		Password: testPassword,
		UserType: domain.UserTypePersonal,
	})
	if err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	return result
}

// wrongCode returns a code of the right shape that differs from code
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
