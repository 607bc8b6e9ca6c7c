package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email for log output, keeping the first
// character of the local part and the TLD so operators can still
// distinguish entries.
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	local, domain := email[:at], email[at+1:]

	var b strings.Builder
	b.WriteByte(local[0])
	b.WriteString(strings.Repeat("*", len(local)-1))
	b.WriteByte('@')

	labels := strings.Split(domain, ".")
	for i, label := range labels {
		if i > 0 {
			b.WriteByte('.')
		}
		if i == len(labels)-1 && len(labels) > 1 {
			b.WriteString(label)
		} else {
			b.WriteString(strings.Repeat("*", len(label)))
		}
	}
	return b.String()
}

// RedactedAttr hides a config value in production logs while keeping
// it readable in development.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveQueryParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"apitoken",
	"auth",
	"csrf",
	"email",
}

// SanitizeQueryString reports whether a raw query string mentions a
// credential-bearing parameter and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
