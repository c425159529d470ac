package api

import (
	"log/slog"
	"net/http"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditSignup           AuditEvent = "signup"
	AuditSignupFailure    AuditEvent = "signup_failure"
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditTokenRejected    AuditEvent = "token_rejected"
)

// auditLogger writes one structured record per auth decision and forwards
// the event to the metrics, when configured. Passwords and tokens never
// reach it.
type auditLogger struct {
	logger  *slog.Logger
	metrics *authMetrics
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) record(level slog.Level, event AuditEvent, r *http.Request, attrs []slog.Attr) {
	all := make([]slog.Attr, 0, len(attrs)+3)
	all = append(all,
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
	)
	if id := r.Header.Get("X-Request-ID"); id != "" {
		all = append(all, slog.String("request_id", id))
	}
	all = append(all, attrs...)
	al.logger.LogAttrs(r.Context(), level, "audit", all...)
	al.metrics.observe(event)
}

// logEvent records a successful action by username.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, username string, extra ...slog.Attr) {
	al.record(slog.LevelInfo, event, r, append([]slog.Attr{slog.String("username", username)}, extra...))
}

// logFailure records a rejected request at warn level.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	al.record(slog.LevelWarn, event, r, append([]slog.Attr{slog.String("reason", reason)}, extra...))
}
