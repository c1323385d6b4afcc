package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/validation"
)

const minPasswordLength = 8

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	userRepo    domain.UserRepository
	passwordSvc domain.PasswordService
	sessions    domain.VerificationSessionService
	otpSvc      domain.OTPService
	issuer      domain.TokenIssuer
	tokenSvc    domain.TokenService
	ledger      domain.TokenLedger
	audit       domain.AuditLogger
	loginTTL    time.Duration
	dummyHash   string
	log         *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo domain.UserRepository,
	passwordSvc domain.PasswordService,
	sessions domain.VerificationSessionService,
	otpSvc domain.OTPService,
	issuer domain.TokenIssuer,
	tokenSvc domain.TokenService,
	ledger domain.TokenLedger,
	audit domain.AuditLogger,
	loginTTL time.Duration,
	log *slog.Logger,
) (*AuthServiceImpl, error) {
	// compared against for unknown identifiers so both branches cost one bcrypt
	dummyHash, err := passwordSvc.Hash("sentinel-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare login timing hash: %w", err)
	}
	return &AuthServiceImpl{
		userRepo:    userRepo,
		passwordSvc: passwordSvc,
		sessions:    sessions,
		otpSvc:      otpSvc,
		issuer:      issuer,
		tokenSvc:    tokenSvc,
		ledger:      ledger,
		audit:       audit,
		loginTTL:    loginTTL,
		dummyHash:   dummyHash,
		log:         log.With("component", "auth"),
		now:         time.Now,
	}, nil
}

// Register implements domain.AuthService
func (s *AuthServiceImpl) Register(ctx context.Context, email, phone string) (*domain.OTPSession, error) {
	email = validation.NormalizeEmail(email)
	phone = validation.NormalizePhone(phone)
	if !validation.IsEmail(email) || !validation.IsPhone(phone) {
		return nil, domain.ErrInvalidIdentifier
	}

	exists, err := s.userRepo.ExistsByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logAudit(ctx, domain.NewAuditEvent(domain.RegistrationStartedEvent, 0).
			WithEmail(email).WithPhone(phone).WithError(domain.ErrUserAlreadyExists))
		return nil, domain.ErrUserAlreadyExists
	}

	session, err := s.sessions.SendDualOTP(ctx, email, phone, nil)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, domain.NewAuditEvent(domain.RegistrationStartedEvent, 0).
		WithEmail(email).WithPhone(phone).WithSession(session.SessionToken).
		WithMetadata("email_delivered", session.Delivery[domain.IdentifierEmail]).
		WithMetadata("sms_delivered", session.Delivery[domain.IdentifierPhone]))
	return session, nil
}

// VerifyOTP implements domain.AuthService
func (s *AuthServiceImpl) VerifyOTP(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.SessionView, error) {
	if _, err := s.loadSession(ctx, sessionToken, domain.PurposeRegistration); err != nil {
		return nil, err
	}

	identifier = validation.Normalize(identifier, t)
	if err := s.otpSvc.Verify(ctx, sessionToken, identifier, t, code); err != nil {
		s.logAudit(ctx, domain.NewAuditEvent(domain.OTPVerifyFailureEvent, 0).
			WithSession(sessionToken).WithMetadata("channel", string(t)).WithError(err))
		return nil, err
	}

	view, err := s.loadSession(ctx, sessionToken, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, domain.NewAuditEvent(domain.OTPVerifiedEvent, 0).
		WithSession(sessionToken).WithMetadata("channel", string(t)).
		WithMetadata("fully_verified", view.FullyVerified))
	return view, nil
}

// ResendOTP implements domain.AuthService
func (s *AuthServiceImpl) ResendOTP(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPSession, error) {
	if !t.Valid() {
		return nil, domain.ErrInvalidIdentifier
	}
	session, err := s.otpSvc.Resend(ctx, sessionToken, t)
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	s.logAudit(ctx, domain.NewAuditEvent(domain.OTPResentEvent, 0).
		WithSession(sessionToken).WithMetadata("channel", string(t)).
		WithMetadata("delivered", session.Delivery[t]))
	return session, nil
}

// CompleteOnboarding implements domain.AuthService
func (s *AuthServiceImpl) CompleteOnboarding(ctx context.Context, sessionToken string, profile domain.OnboardingProfile) (*domain.AuthResult, error) {
	view, err := s.loadSession(ctx, sessionToken, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	if !view.FullyVerified || view.Email == nil || view.Phone == nil {
		return nil, domain.ErrSessionNotVerified
	}
	if err := validateProfile(&profile); err != nil {
		return nil, err
	}

	hash, err := s.passwordSvc.Hash(profile.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:               view.Email.Identifier,
		Phone:               view.Phone.Identifier,
		FullName:            profile.FullName,
		PasswordHash:        hash,
		UserType:            profile.UserType,
		OnboardingCompleted: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.cleanup(ctx, sessionToken)

	s.logAudit(ctx, domain.NewAuditEvent(domain.UserOnboardedEvent, user.ID).
		WithEmail(user.Email).WithPhone(user.Phone).WithSession(sessionToken).
		WithMetadata("user_type", user.UserType))
	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Login implements domain.AuthService. Every credential failure returns the
// same error whether or not the identifier exists.
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, password string) (*domain.OTPSession, error) {
	value, t, err := validation.Classify(identifier)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	if t == domain.IdentifierEmail {
		user, err = s.userRepo.FindByEmail(ctx, value)
	} else {
		user, err = s.userRepo.FindByPhone(ctx, value)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.passwordSvc.Verify(s.dummyHash, password)
		s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, 0).
			WithMetadata("channel", string(t)).WithError(domain.ErrInvalidCredentials))
		return nil, domain.ErrInvalidCredentials
	}
	if !s.passwordSvc.Verify(user.PasswordHash, password) {
		s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, user.ID).
			WithMetadata("channel", string(t)).WithError(domain.ErrInvalidCredentials))
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.sessions.SendLoginOTP(ctx, value, t, user.ID, s.loginTTL)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, domain.NewAuditEvent(domain.LoginChallengeEvent, user.ID).
		WithSession(session.SessionToken).WithMetadata("channel", string(t)).
		WithMetadata("delivered", session.Delivery[t]))
	return session, nil
}

// VerifyLogin implements domain.AuthService
func (s *AuthServiceImpl) VerifyLogin(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.AuthResult, error) {
	view, err := s.loadSession(ctx, sessionToken, domain.PurposeLogin)
	if err != nil {
		return nil, err
	}
	if view.UserID == nil {
		return nil, domain.ErrSessionNotFound
	}

	identifier = validation.Normalize(identifier, t)
	if err := s.otpSvc.Verify(ctx, sessionToken, identifier, t, code); err != nil {
		s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, *view.UserID).
			WithSession(sessionToken).WithMetadata("channel", string(t)).WithError(err))
		return nil, err
	}

	// only the caller that removes the session is issued tokens
	if err := s.sessions.ClaimSession(ctx, sessionToken); err != nil {
		s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, *view.UserID).
			WithSession(sessionToken).WithMetadata("channel", string(t)).WithError(err))
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, *view.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginEvent, user.ID).
		WithEmail(user.Email).WithSession(sessionToken))
	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh implements domain.AuthService. The presented token is consumed
// before a new pair is issued, so it can be used once.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logAudit(ctx, domain.NewAuditEvent(domain.RefreshRejectedEvent, 0).WithError(err))
		return nil, err
	}

	valid, err := s.ledger.IsRefreshTokenValidStrict(ctx, claims.UserID, claims.JTI)
	if err != nil {
		return nil, err
	}
	if !valid {
		s.logAudit(ctx, domain.NewAuditEvent(domain.RefreshRejectedEvent, claims.UserID).
			WithError(domain.ErrTokenRevoked))
		return nil, domain.ErrTokenRevoked
	}
	if err := s.ledger.Consume(ctx, claims.UserID, claims.JTI); err != nil {
		s.logAudit(ctx, domain.NewAuditEvent(domain.RefreshRejectedEvent, claims.UserID).WithError(err))
		return nil, err
	}

	// the access token minted alongside this refresh token dies with it
	accessExp := time.Unix(claims.IssuedAt, 0).Add(s.tokenSvc.AccessTTL())
	if err := s.ledger.BlacklistAccessToken(ctx, claims.JTI, accessExp.Sub(s.now())); err != nil {
		s.log.WarnContext(ctx, "failed to blacklist rotated access token", "err", err)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, domain.NewAuditEvent(domain.TokenRefreshedEvent, user.ID))
	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Logout implements domain.AuthService
func (s *AuthServiceImpl) Logout(ctx context.Context, userID uint, accessJTI string, accessExpiresAt time.Time) error {
	if err := s.ledger.RevokeAll(ctx, userID); err != nil {
		return err
	}
	if err := s.ledger.BlacklistAccessToken(ctx, accessJTI, accessExpiresAt.Sub(s.now())); err != nil {
		s.log.WarnContext(ctx, "failed to blacklist access token at logout", "err", err)
	}
	s.logAudit(ctx, domain.NewAuditEvent(domain.UserLogoutEvent, userID))
	return nil
}

// GetUserProfile implements domain.AuthService
func (s *AuthServiceImpl) GetUserProfile(ctx context.Context, userID uint) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// loadSession returns the session view or the error a caller should see
func (s *AuthServiceImpl) loadSession(ctx context.Context, sessionToken string, purpose domain.SessionPurpose) (*domain.SessionView, error) {
	if sessionToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	view, err := s.sessions.IsSessionFullyVerified(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.ErrSessionNotFound
	}
	if view.Purpose != purpose {
		return nil, domain.ErrSessionPurpose
	}
	return view, nil
}

func (s *AuthServiceImpl) cleanup(ctx context.Context, sessionToken string) {
	if err := s.sessions.CleanupSession(ctx, sessionToken); err != nil {
		s.log.ErrorContext(ctx, "failed to clean up verification session", "err", err)
	}
}

func (s *AuthServiceImpl) logAudit(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, event.WithClientContext(domain.ClientFromContext(ctx)))
}

func validateProfile(p *domain.OnboardingProfile) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return domain.ErrInvalidProfile
	}
	if len(p.Password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	switch p.UserType {
	case domain.UserTypePersonal, domain.UserTypeBusiness:
		return nil
	default:
		return domain.ErrInvalidUserType
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrAuthentication)
}

var _ domain.AuthService = (*AuthServiceImpl)(nil)
