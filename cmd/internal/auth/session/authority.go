package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/telemetry"
	"github.com/grebenindmitry/babilado-backend/cmd/security/token"
)

// CredentialChecker answers whether secret belongs to identity.
// Unknown identities report false; errors mean the check itself could not run.
type CredentialChecker interface {
	CheckPassword(ctx context.Context, identity, secret string) (bool, error)
}

type Session struct {
	Identity string
	Token    string
	Expiry   time.Time
}

// Authority issues, extends and verifies sessions.
type Authority struct {
	cfg     Config
	creds   CredentialChecker
	log     *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

type Option func(*Authority)

func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Authority) {
		if log != nil {
			a.log = log
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Authority) { a.metrics = m }
}

func NewAuthority(cfg Config, creds CredentialChecker, opts ...Option) *Authority {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.TokenBytes < token.MinBytes || cfg.TokenBytes > token.MaxBytes {
		cfg.TokenBytes = def.TokenBytes
	}

	a := &Authority{
		cfg:      cfg,
		creds:    creds,
		log:      slog.Default(),
		now:      time.Now,
		sessions: make(map[string]Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// CreateOrExtend returns the live session for identity with its expiry pushed
// to now+Window, or checks secret and mints a new session when none is live.
//
// Errors: apperr.ErrUnauthorized on a mismatch or unknown identity,
// apperr.ErrInternal when the credential check fails.
func (a *Authority) CreateOrExtend(ctx context.Context, identity, secret string) (Session, error) {
	const op = "session.CreateOrExtend"

	identity = strings.TrimSpace(identity)
	if identity == "" {
		a.metrics.Session("denied")
		return Session{}, apperr.Unauthorized(op)
	}

	if s, ok := a.extendLive(identity); ok {
		a.metrics.Session("extended")
		return s, nil
	}

	// No lock is held across the credential check.
	ok, err := a.creds.CheckPassword(ctx, identity, secret)
	if err != nil {
		a.log.Error("session.verifier.fail", "op", op, "user_id", identity, "err", err)
		a.metrics.Session("error")
		return Session{}, apperr.Internal(op, err)
	}
	if !ok {
		a.metrics.Session("denied")
		return Session{}, apperr.Unauthorized(op)
	}

	tok, err := token.New(a.cfg.TokenBytes)
	if err != nil {
		a.log.Error("session.token.fail", "op", op, "err", err)
		a.metrics.Session("error")
		return Session{}, apperr.Internal(op, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	// A concurrent login may have created a live session while we were checking.
	if cur, ok := a.sessions[identity]; ok && cur.Expiry.After(now) {
		cur.Expiry = later(cur.Expiry, now.Add(a.cfg.Window))
		a.sessions[identity] = cur
		a.metrics.Session("extended")
		return cur, nil
	}

	s := Session{Identity: identity, Token: tok, Expiry: now.Add(a.cfg.Window)}
	a.sessions[identity] = s
	a.metrics.Session("created")
	a.log.Info("session.create",
		"user_id", identity,
		"token_fp", token.Fingerprint(tok, []byte(a.cfg.FingerprintKey)),
		"expires_at", s.Expiry,
	)
	return s, nil
}

// Verify reports whether token is the current token for identity and the
// session has not expired. It never mutates state.
func (a *Authority) Verify(identity, tok string) bool {
	if identity == "" || tok == "" {
		return false
	}

	a.mu.RLock()
	s, ok := a.sessions[identity]
	a.mu.RUnlock()

	if !ok || !token.Equal(s.Token, tok) {
		return false
	}
	return s.Expiry.After(a.now())
}

func (a *Authority) extendLive(identity string) (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	cur, ok := a.sessions[identity]
	if !ok || !cur.Expiry.After(now) {
		return Session{}, false
	}
	cur.Expiry = later(cur.Expiry, now.Add(a.cfg.Window))
	a.sessions[identity] = cur
	return cur, true
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
