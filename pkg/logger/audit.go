package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// AuditEvent is one security-relevant occurrence: a login attempt, a
// password change, an administrative account action.
type AuditEvent struct {
	EventType     string
	UserID        string
	Identifier    string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger emits structured security events on the application
// logger. Durable audit records (setting changes) additionally go to
// the database; this stream is for operational monitoring.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthAttempt records a login or refresh attempt. Email identifiers
// are masked before they reach the log stream.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Identifier != "" {
		identifier := event.Identifier
		if strings.Contains(identifier, "@") {
			identifier = SanitizedEmail(identifier)
		}
		attrs = append(attrs, slog.String("identifier", identifier))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	al.emit(event.Success, event.IPAddress, attrs)
}

// LogPasswordChange records a password rotation attempt.
func (al *AuditLogger) LogPasswordChange(userID, ipAddress string, success bool) {
	al.emit(success, ipAddress, []slog.Attr{
		slog.String("audit_type", "password"),
		slog.String("event_type", "password_change"),
		slog.Bool("success", success),
		slog.String("user_id", userID),
	})
}

// LogAccountAction records lock, unlock, logout and similar account
// state changes.
func (al *AuditLogger) LogAccountAction(eventType, userID, ipAddress string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	al.emit(true, ipAddress, attrs)
}

func (al *AuditLogger) emit(success bool, ipAddress string, attrs []slog.Attr) {
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	attrs = append(attrs, slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)))

	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
