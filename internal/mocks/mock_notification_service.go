package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// MockOTPNotifier implements domain.OTPNotifier and remembers the last code
// sent to each destination.
type MockOTPNotifier struct {
	SendEmailOTPFunc func(ctx context.Context, to, code string) error
	SendSMSOTPFunc   func(ctx context.Context, to, code string) error

	mu    sync.Mutex
	codes map[string]string
	sent  int
}

// NewMockOTPNotifier creates a new MockOTPNotifier with default behaviors
func NewMockOTPNotifier() *MockOTPNotifier {
	return &MockOTPNotifier{codes: make(map[string]string)}
}

// SendEmailOTP records the code and calls SendEmailOTPFunc if set
func (m *MockOTPNotifier) SendEmailOTP(ctx context.Context, to, code string, _ time.Duration) error {
	m.record(to, code)
	if m.SendEmailOTPFunc != nil {
		return m.SendEmailOTPFunc(ctx, to, code)
	}
	return nil
}

// SendSMSOTP records the code and calls SendSMSOTPFunc if set
func (m *MockOTPNotifier) SendSMSOTP(ctx context.Context, to, code string, _ time.Duration) error {
	m.record(to, code)
	if m.SendSMSOTPFunc != nil {
		return m.SendSMSOTPFunc(ctx, to, code)
	}
	return nil
}

// CodeFor returns the last code sent to destination
func (m *MockOTPNotifier) CodeFor(destination string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[destination]
}

// Sent returns how many codes were dispatched
func (m *MockOTPNotifier) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func (m *MockOTPNotifier) record(to, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	m.sent++
}

// MockNotificationService implements domain.NotificationService interface for testing
type MockNotificationService struct {
	SendSMSFunc   func(ctx context.Context, to, message string) error
	SendEmailFunc func(ctx context.Context, to, subject, body string) error
}

// NewMockNotificationService creates a new MockNotificationService with default behaviors
func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

// SendSMS sends an SMS message
func (m *MockNotificationService) SendSMS(ctx context.Context, to, message string) error {
	if m.SendSMSFunc != nil {
		return m.SendSMSFunc(ctx, to, message)
	}
	// Default behavior: success (no actual SMS sent in tests)
	return nil
}

// SendEmail sends an email message
func (m *MockNotificationService) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, to, subject, body)
	}
	// Default behavior: success (no actual email sent in tests)
	return nil
}

// Compile-time interface compliance verification
var (
	_ domain.OTPNotifier         = (*MockOTPNotifier)(nil)
	_ domain.NotificationService = (*MockNotificationService)(nil)
)
