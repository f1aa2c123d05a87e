package authapi

import (
	"log/slog"
	"net"
	"strings"
	"time"
)

// Audit events are emitted as structured log lines under the "audit" group.

func (h *Handler) auditLoginFailed(ip net.IP, ua, username, reason string) {
	h.audit("auth.login.failed", nil, ip, ua, slog.String("username", username), slog.String("reason", reason))
}

func (h *Handler) auditLoginSuccess(userID string, ip net.IP, ua string, expires time.Time) {
	h.audit("auth.login.success", &userID, ip, ua, slog.Time("expires_at", expires))
}

func (h *Handler) auditLoginRateLimited(ip net.IP, ua, username string, retryAfter time.Duration) {
	h.audit("auth.login.rate_limited", nil, ip, ua,
		slog.String("username", username),
		slog.Int64("retry_after_seconds", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) auditUserCreated(userID string, ip net.IP, ua string) {
	h.audit("auth.user.created", &userID, ip, ua)
}

func (h *Handler) audit(action string, userID *string, ip net.IP, ua string, extra ...slog.Attr) {
	attrs := make([]any, 0, 4+len(extra))
	attrs = append(attrs, slog.String("action", action))
	if userID != nil {
		attrs = append(attrs, slog.String("user_id", *userID))
	}
	if ip != nil {
		attrs = append(attrs, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	for _, a := range extra {
		attrs = append(attrs, a)
	}
	h.log.Info(action, slog.Group("audit", attrs...))
}
