package mocks

import (
	"context"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// MockAuthService implements domain.AuthService interface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, email, phone string) (*domain.OTPSession, error)
	VerifyOTPFunc          func(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.SessionView, error)
	ResendOTPFunc          func(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPSession, error)
	CompleteOnboardingFunc func(ctx context.Context, sessionToken string, profile domain.OnboardingProfile) (*domain.AuthResult, error)
	LoginFunc              func(ctx context.Context, identifier, password string) (*domain.OTPSession, error)
	VerifyLoginFunc        func(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.AuthResult, error)
	RefreshFunc            func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	LogoutFunc             func(ctx context.Context, userID uint, accessJTI string, accessExpiresAt time.Time) error
	GetUserProfileFunc     func(ctx context.Context, userID uint) (*domain.User, error)
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

// Register starts a registration session
func (m *MockAuthService) Register(ctx context.Context, email, phone string) (*domain.OTPSession, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, phone)
	}
	// Default behavior: both codes delivered
	return &domain.OTPSession{
		SessionToken: "mock-session",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
		Delivery:     domain.DeliveryReport{domain.IdentifierEmail: true, domain.IdentifierPhone: true},
	}, nil
}

// VerifyOTP verifies one registration channel
func (m *MockAuthService) VerifyOTP(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.SessionView, error) {
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, sessionToken, identifier, t, code)
	}
	return &domain.SessionView{SessionToken: sessionToken, Purpose: domain.PurposeRegistration}, nil
}

// ResendOTP issues a new code for one channel
func (m *MockAuthService) ResendOTP(ctx context.Context, sessionToken string, t domain.IdentifierType) (*domain.OTPSession, error) {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, sessionToken, t)
	}
	return &domain.OTPSession{SessionToken: sessionToken, Delivery: domain.DeliveryReport{t: true}}, nil
}

// CompleteOnboarding creates the user
func (m *MockAuthService) CompleteOnboarding(ctx context.Context, sessionToken string, profile domain.OnboardingProfile) (*domain.AuthResult, error) {
	if m.CompleteOnboardingFunc != nil {
		return m.CompleteOnboardingFunc(ctx, sessionToken, profile)
	}
	return nil, domain.ErrSessionNotVerified
}

// Login checks credentials and opens a login challenge
func (m *MockAuthService) Login(ctx context.Context, identifier, password string) (*domain.OTPSession, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password)
	}
	// Default behavior: invalid credentials
	return nil, domain.ErrInvalidCredentials
}

// VerifyLogin completes a login challenge
func (m *MockAuthService) VerifyLogin(ctx context.Context, sessionToken, identifier string, t domain.IdentifierType, code string) (*domain.AuthResult, error) {
	if m.VerifyLoginFunc != nil {
		return m.VerifyLoginFunc(ctx, sessionToken, identifier, t, code)
	}
	return nil, domain.ErrOTPInvalid
}

// Refresh rotates a refresh token
func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, domain.ErrTokenInvalid
}

// Logout revokes the user's tokens
func (m *MockAuthService) Logout(ctx context.Context, userID uint, accessJTI string, accessExpiresAt time.Time) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, userID, accessJTI, accessExpiresAt)
	}
	// Default behavior: success
	return nil
}

// GetUserProfile returns the user's profile
func (m *MockAuthService) GetUserProfile(ctx context.Context, userID uint) (*domain.User, error) {
	if m.GetUserProfileFunc != nil {
		return m.GetUserProfileFunc(ctx, userID)
	}
	return nil, domain.ErrUserNotFound
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*MockAuthService)(nil)
