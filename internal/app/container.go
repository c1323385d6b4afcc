package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/config"
	httpx "github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http/handlers"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/http/middleware"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/auth"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/database"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/notifications"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/repositories"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config
	Log    *slog.Logger

	// Infrastructure
	DB    *gorm.DB
	Cache *cache.Cache

	// Repositories
	UserRepo          domain.UserRepository
	RefreshRepo       *repositories.RefreshTokenRepositoryImpl
	VerificationCodes *repositories.VerificationCodeRepository
	VerificationStore domain.VerificationStore

	// Services
	PasswordSvc domain.PasswordService
	TokenSvc    domain.TokenService
	Notifier    domain.OTPNotifier
	OTPSvc      *services.OTPServiceImpl
	Sessions    domain.VerificationSessionService
	Ledger      domain.TokenLedger
	AuthSvc     domain.AuthService
	PolicySvc   domain.PolicyService
	Sweeper     *services.Sweeper
}

// NewContainer connects to the configured database, cache and providers and
// wires every service over them
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	db, err := database.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// a cache that is down at startup is not fatal; every cache user has a
	// degraded path
	c := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := c.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup, running degraded", "addr", cfg.RedisAddr, "err", err)
	}

	notifier, err := newNotifier(ctx, cfg, log)
	if err != nil {
		closeInfra(db, c)
		return nil, err
	}

	container, err := Assemble(cfg, log, db, c, notifier)
	if err != nil {
		closeInfra(db, c)
		return nil, err
	}
	return container, nil
}

func closeInfra(db *gorm.DB, c *cache.Cache) {
	c.Close()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// Assemble wires the services over already-open infrastructure
func Assemble(cfg *config.Config, log *slog.Logger, db *gorm.DB, c *cache.Cache, notifier domain.OTPNotifier) (*Container, error) {
	container := &Container{Config: cfg, Log: log, DB: db, Cache: c, Notifier: notifier}

	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	container.initRepositories()
	if err := container.initServices(); err != nil {
		return nil, err
	}
	if err := container.initPolicies(); err != nil {
		return nil, err
	}
	return container, nil
}

func (c *Container) initRepositories() {
	c.UserRepo = repositories.NewUserRepository(c.DB)
	c.RefreshRepo = repositories.NewRefreshTokenRepository(c.DB)
	c.VerificationCodes = repositories.NewVerificationCodeRepository(c.DB)
	c.VerificationStore = repositories.NewTieredVerificationStore(
		repositories.NewVerificationCacheRepository(c.Cache),
		c.VerificationCodes,
		c.Log,
	)
}

// newNotifier picks the SMS and email providers. In release mode a missing
// provider is an error unless sms_provider is "log".
func newNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.OTPNotifier, error) {
	allowLog := cfg.GinMode != gin.ReleaseMode || cfg.SMSProvider == config.SMSProviderLog

	var sms notifications.SMSSender
	switch {
	case cfg.SMSProvider == config.SMSProviderSNS:
		sender, err := notifications.NewSNSSender(ctx, cfg.SNSRegion)
		if err != nil {
			return nil, err
		}
		sms = sender
	case cfg.SMSProvider == config.SMSProviderTwilio && cfg.TwilioSID != "" && cfg.TwilioToken != "":
		sms = notifications.NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
	case allowLog:
		log.Warn("no sms provider configured, codes are logged")
		sms = notifications.NewLogSender(log)
	default:
		return nil, fmt.Errorf("sms provider %q has no credentials", cfg.SMSProvider)
	}

	var mail notifications.Mailer
	switch {
	case cfg.SMTPHost != "":
		mail = notifications.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	case allowLog:
		log.Warn("no smtp host configured, emails are logged")
		mail = notifications.NewLogSender(log)
	default:
		return nil, errors.New("no smtp host configured")
	}

	return notifications.NewOTPDispatcher(notifications.NewService(sms, mail)), nil
}

func (c *Container) initServices() error {
	c.PasswordSvc = auth.NewPasswordService()
	tokens := auth.NewJWTService(c.Config.JWTSecret, c.Config.JWTIssuer, c.Config.AccessTTL, c.Config.RefreshTTL)
	c.TokenSvc = tokens

	otpConfig := services.OTPConfig{
		Length:         c.Config.OTP.CodeLength,
		TTL:            c.Config.OTP.TTL,
		LoginTTL:       c.Config.OTP.LoginTTL,
		MaxAttempts:    c.Config.OTP.MaxAttempts,
		ResendCooldown: c.Config.OTP.ResendCooldown,
	}
	c.OTPSvc = services.NewOTPService(c.VerificationStore, c.Cache, c.Notifier, otpConfig, c.Log)
	c.Sessions = services.NewVerificationSessionService(
		c.OTPSvc,
		c.VerificationStore,
		c.Notifier,
		services.NewBestEffortRunner(c.Config.DispatchTimeout, c.Log),
		otpConfig.TTL,
		c.Log,
	)

	ledger := services.NewTokenLedger(c.Cache, c.RefreshRepo, c.Log)
	c.Ledger = ledger

	authSvc, err := services.NewAuthService(
		c.UserRepo,
		c.PasswordSvc,
		c.Sessions,
		c.OTPSvc,
		services.NewTokenIssuer(tokens, ledger),
		tokens,
		ledger,
		services.NewAuditLogger(c.Log),
		otpConfig.LoginTTL,
		c.Log,
	)
	if err != nil {
		return err
	}
	c.AuthSvc = authSvc

	c.Sweeper = services.NewSweeper(c.Config.SweepInterval, c.Log,
		services.SweepTarget{Name: "verification_codes", Purger: c.VerificationCodes, Retention: c.OTPSvc.Retention()},
		services.SweepTarget{Name: "refresh_tokens", Purger: c.RefreshRepo},
	)
	return nil
}

func (c *Container) initPolicies() error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return err
	}
	policySvc := services.NewPolicyService(cas.E)
	if err := policySvc.SeedDefaults(); err != nil {
		return err
	}
	c.PolicySvc = policySvc
	return nil
}

// Router builds the HTTP handler over the container's services. The rate
// limiter is returned so the caller can run its cleanup loop.
func (c *Container) Router() (*gin.Engine, *middleware.RateLimiter, error) {
	authH := handlers.NewAuthHandlers(c.AuthSvc, handlers.CookieSettings{
		Secure: c.Config.CookieSecure,
		Domain: c.Config.CookieDomain,
	}, c.Log)
	jwtMW := middleware.NewAuthMW(c.TokenSvc, c.Ledger, c.Log)
	casbinMW := middleware.NewCasbinMW(c.PolicySvc, c.Log)
	limiter := middleware.NewRateLimiter(rate.Limit(c.Config.RateLimitRPS), c.Config.RateLimitBurst)

	r, err := httpx.BuildRouter(authH, jwtMW, casbinMW, limiter)
	if err != nil {
		return nil, nil, err
	}
	return r, limiter, nil
}

// Close closes all connections
func (c *Container) Close() error {
	if c.Cache != nil {
		c.Cache.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
