package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/grebenindmitry/babilado-backend/cmd/identity"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/auth/session"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/ids"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/messages"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/realtime"
	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

// Login credentials travel as request headers on GET /api/session.
const (
	headerUsername = "username"
	headerPassword = "password"
)

// Sessions is the session authority as seen by the HTTP layer.
type Sessions interface {
	CreateOrExtend(ctx context.Context, identity, secret string) (session.Session, error)
	Verify(identity, token string) bool
}

// Messages is the send pipeline plus its read side.
type Messages interface {
	Send(ctx context.Context, in messages.SendInput) (messages.Message, error)
	GetMessages(ctx context.Context, a, b string) ([]messages.Message, error)
	GetLastMessage(ctx context.Context, a, b string) (messages.Message, error)
	GetConversations(ctx context.Context, user string) ([]messages.Conversation, error)
}

// Handler serves the JSON API: login, the user directory and messages.
type Handler struct {
	log *slog.Logger
	cfg Config
	now func() time.Time

	users    identity.Store
	sessions Sessions
	msgs     Messages

	validate *validator.Validate
	throttle *loginThrottle
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(cfg Config, users identity.Store, sessions Sessions, msgs Messages, opts ...HandlerOption) (*Handler, error) {
	if users == nil || sessions == nil || msgs == nil {
		return nil, errors.New("authapi: nil dependency")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:      slog.Default(),
		cfg:      cfg,
		now:      time.Now,
		users:    users,
		sessions: sessions,
		msgs:     msgs,
		validate: newValidator(),
		throttle: newLoginThrottle(cfg),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Register wires API routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /api/session", h.handleSession)
	mux.HandleFunc("POST /api/users", h.handleCreateUser)
	mux.HandleFunc("GET /api/users/{ref}", h.handleGetUser)
	mux.HandleFunc("GET /api/users/{id}/conversations", h.handleConversations)
	mux.HandleFunc("POST /api/message", h.handleSendMessage)
	mux.HandleFunc("GET /api/messages", h.handleGetMessages)
	mux.HandleFunc("GET /api/messages/last", h.handleGetLastMessage)
}

// ---- handlers ----

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.Header.Get(headerUsername))
	password := r.Header.Get(headerPassword)
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, apperr.ErrInvalidInput.Error(), "username and password headers are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	key := identity.NormalizeUsername(username)

	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}
	if blocked, retryAfter := h.throttle.check(now, ipKey, key); blocked {
		h.auditLoginRateLimited(ip, ua, key, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.throttle.recordFailure(now, ipKey, key)
			h.auditLoginFailed(ip, ua, key, "not_found")
			writeAppError(w, apperr.Unauthorized("api.session"))
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeAppError(w, err)
		return
	}

	s, err := h.sessions.CreateOrExtend(ctx, u.ID, password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			h.throttle.recordFailure(now, ipKey, key)
			h.auditLoginFailed(ip, ua, key, "bad_password")
		}
		writeAppError(w, err)
		return
	}

	h.throttle.reset(key)
	h.auditLoginSuccess(u.ID, ip, ua, s.Expiry)
	writeJSON(w, http.StatusOK, toSessionResponse(s, u))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Now:      h.now().UTC(),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	h.auditUserCreated(u.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// handleGetUser resolves {ref} as an id (public) or, for callers with a
// session, as a username.
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))

	var (
		u   identity.User
		err error
	)
	if ids.IsUserID(ref) {
		u, err = h.users.GetUserByID(r.Context(), ref)
	} else {
		if _, ok := h.requireAuth(w, r); !ok {
			return
		}
		u, err = h.users.GetUserByUsername(r.Context(), ref)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	if r.PathValue("id") != caller {
		writeAppError(w, apperr.Unauthorized("api.conversations"))
		return
	}

	convs, err := h.msgs.GetConversations(r.Context(), caller)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationList(convs))
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := messages.SendInput{
		Sender:    caller,
		Recipient: req.Recipient,
		Body:      req.MsgData,
	}
	if req.MsgType != nil {
		in.Kind = *req.MsgType
	}
	if req.TimeSent != nil && *req.TimeSent > 0 {
		in.SentAt = v1.FromUnixMilli(*req.TimeSent)
	}

	m, err := h.msgs.Send(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m.Wire())
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	caller, other, ok := h.conversationParams(w, r)
	if !ok {
		return
	}

	msgs, err := h.msgs.GetMessages(r.Context(), caller, other)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageList(msgs))
}

func (h *Handler) handleGetLastMessage(w http.ResponseWriter, r *http.Request) {
	caller, other, ok := h.conversationParams(w, r)
	if !ok {
		return
	}

	m, err := h.msgs.GetLastMessage(r.Context(), caller, other)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Wire())
}

// ---- helpers ----

// requireAuth checks the userid/sessionid headers and returns the caller's identity.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(realtime.HeaderUserID))
	token := strings.TrimSpace(r.Header.Get(realtime.HeaderSessionID))
	if userID == "" || token == "" || !h.sessions.Verify(userID, token) {
		writeError(w, http.StatusUnauthorized, apperr.ErrUnauthorized.Error(), "missing or invalid session")
		return "", false
	}
	return userID, true
}

func (h *Handler) conversationParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	caller, ok := h.requireAuth(w, r)
	if !ok {
		return "", "", false
	}
	other := strings.TrimSpace(r.URL.Query().Get("recipient"))
	if other == "" {
		writeError(w, http.StatusBadRequest, apperr.ErrInvalidInput.Error(), "recipient is required")
		return "", "", false
	}
	return caller, other, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, apperr.ErrInvalidInput.Error(), validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
	return "invalid request"
}
