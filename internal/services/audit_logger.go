package services

import (
	"context"
	"log/slog"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// SlogAuditLogger writes audit events as structured log records
type SlogAuditLogger struct {
	log *slog.Logger
}

// NewAuditLogger creates an audit logger on log
func NewAuditLogger(log *slog.Logger) *SlogAuditLogger {
	return &SlogAuditLogger{log: log.With("component", "audit")}
}

// LogEvent implements domain.AuditLogger
func (a *SlogAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	if event == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType)),
		slog.Bool("success", event.Success),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.UserID != 0 {
		attrs = append(attrs, slog.Uint64("user_id", uint64(event.UserID)))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", event.Email))
	}
	if event.Phone != "" {
		attrs = append(attrs, slog.String("phone", event.Phone))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session", event.SessionID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.ErrorMsg != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMsg))
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata)*2)
		for k, v := range event.Metadata {
			meta = append(meta, k, v)
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	a.log.LogAttrs(ctx, level, "audit", attrs...)
}

var _ domain.AuditLogger = (*SlogAuditLogger)(nil)
