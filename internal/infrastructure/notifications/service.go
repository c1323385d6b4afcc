package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// SMSSender delivers a text message to a phone number
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Mailer delivers an email
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Service implements domain.NotificationService over one SMS provider and
// one mailer.
type Service struct {
	sms  SMSSender
	mail Mailer
}

// NewService composes the providers
func NewService(sms SMSSender, mail Mailer) *Service {
	return &Service{sms: sms, mail: mail}
}

// SendSMS implements domain.NotificationService
func (s *Service) SendSMS(ctx context.Context, to, message string) error {
	return s.sms.SendSMS(ctx, to, message)
}

// SendEmail implements domain.NotificationService
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.mail.SendEmail(ctx, to, subject, body)
}

// ErrNotDelivered is returned by LogSender: the message was logged, not sent
var ErrNotDelivered = errors.New("message logged, no provider configured")

// LogSender stands in for an unconfigured provider and writes messages to
// the log. Never use it in production; codes end up in log files.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a logging provider
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

// SendSMS implements SMSSender
func (l *LogSender) SendSMS(ctx context.Context, to, message string) error {
	l.log.InfoContext(ctx, "sms not sent, no provider configured", "to", to, "message", message)
	return ErrNotDelivered
}

// SendEmail implements Mailer
func (l *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	l.log.InfoContext(ctx, "email not sent, no provider configured", "to", to, "subject", subject, "body", body)
	return ErrNotDelivered
}

// OTPDispatcher renders one-time code messages and hands them to a
// NotificationService.
type OTPDispatcher struct {
	notifier domain.NotificationService
}

// NewOTPDispatcher creates a dispatcher
func NewOTPDispatcher(notifier domain.NotificationService) *OTPDispatcher {
	return &OTPDispatcher{notifier: notifier}
}

// SendEmailOTP implements domain.OTPNotifier
func (d *OTPDispatcher) SendEmailOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	body := fmt.Sprintf("Your verification code is %s.\n\nIt expires in %s. If you did not request it, ignore this email.",
		code, humanDuration(ttl))
	return d.notifier.SendEmail(ctx, to, "Your verification code", body)
}

// SendSMSOTP implements domain.OTPNotifier
func (d *OTPDispatcher) SendSMSOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	msg := fmt.Sprintf("Your verification code is: %s. Valid for %s.", code, humanDuration(ttl))
	return d.notifier.SendSMS(ctx, to, msg)
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}

var (
	_ domain.NotificationService = (*Service)(nil)
	_ domain.OTPNotifier         = (*OTPDispatcher)(nil)
	_ SMSSender                  = (*TwilioSender)(nil)
	_ SMSSender                  = (*SNSSender)(nil)
	_ SMSSender                  = (*LogSender)(nil)
	_ Mailer                     = (*SMTPMailer)(nil)
	_ Mailer                     = (*LogSender)(nil)
)
