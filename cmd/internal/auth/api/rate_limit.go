package authapi

import (
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// loginThrottle remembers failed logins per client IP and per username.
// State is process local, like the session table. Expired keys are swept
// from both maps while failures are recorded.
type loginThrottle struct {
	mu        sync.Mutex
	cfg       Config
	tiers     []lockoutTier
	byIP      map[string][]time.Time
	byUser    map[string][]time.Time
	lastSweep time.Time
}

func newLoginThrottle(cfg Config) *loginThrottle {
	return &loginThrottle{
		cfg:    cfg,
		tiers:  cfg.lockoutTiers(),
		byIP:   make(map[string][]time.Time),
		byUser: make(map[string][]time.Time),
	}
}

// check reports whether a login from ip for user must be refused, and for how long.
func (t *loginThrottle) check(now time.Time, ip, user string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip != "" && t.cfg.LoginIPMax > 0 {
		failures := prune(t.byIP, ip, now.Add(-t.cfg.LoginIPWindow))
		if blocked, retry := evaluateWindowThrottle(now, failures, t.cfg.LoginIPMax, t.cfg.LoginIPWindow); blocked {
			return true, retry
		}
	}
	if user != "" {
		failures := prune(t.byUser, user, now.Add(-t.cfg.LoginUserWindow))
		if blocked, retry := evaluateProgressiveLockout(now, failures, t.tiers); blocked {
			return true, retry
		}
	}
	return false, 0
}

func (t *loginThrottle) recordFailure(now time.Time, ip, user string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.sweepInterval() {
		t.sweep(now)
	}

	// Newest first, matching the evaluators.
	if ip != "" {
		t.byIP[ip] = slices.Insert(t.byIP[ip], 0, now)
	}
	if user != "" {
		t.byUser[user] = slices.Insert(t.byUser[user], 0, now)
	}
}

// reset forgets username failures after a successful login.
func (t *loginThrottle) reset(user string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byUser, user)
}

func (t *loginThrottle) sweepInterval() time.Duration {
	return max(min(t.cfg.LoginIPWindow, t.cfg.LoginUserWindow), time.Second)
}

// sweep drops every key whose failures have all left their window.
func (t *loginThrottle) sweep(now time.Time) {
	t.lastSweep = now
	for ip := range t.byIP {
		prune(t.byIP, ip, now.Add(-t.cfg.LoginIPWindow))
	}
	for user := range t.byUser {
		prune(t.byUser, user, now.Add(-t.cfg.LoginUserWindow))
	}
}

func prune(m map[string][]time.Time, key string, cut time.Time) []time.Time {
	failures := m[key]
	i := slices.IndexFunc(failures, func(ts time.Time) bool { return !ts.After(cut) })
	if i >= 0 {
		failures = failures[:i]
	}
	if len(failures) == 0 {
		delete(m, key)
		return nil
	}
	m[key] = failures
	return failures
}

// evaluateWindowThrottle blocks once limit failures fall inside window.
// failures are ordered newest first.
func evaluateWindowThrottle(now time.Time, failures []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	inWindow := make([]time.Time, 0, len(failures))
	for _, ts := range failures {
		if ts.After(cut) {
			inWindow = append(inWindow, ts)
		}
	}
	if len(inWindow) < limit {
		return false, 0
	}
	// Unblocked when the limit-th newest failure leaves the window.
	return true, inWindow[limit-1].Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier (highest threshold
// first) whose lockout, counted from the newest failure, is still running.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	newest := failures[0]
	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		if until := newest.Add(tier.Duration); until.After(now) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
