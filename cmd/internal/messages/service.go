package messages

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/grebenindmitry/babilado-backend/cmd/identity"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/telemetry"
	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

// Notifier pushes a payload to identity's live channel, if any.
// It reports whether a live channel existed, not whether the write succeeded.
type Notifier interface {
	Send(identity string, payload []byte) bool
}

// UserDirectory resolves counterpart names for the conversation list.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

type SendInput struct {
	Sender    string
	Recipient string
	Body      string
	Kind      int
	SentAt    time.Time
}

type Service struct {
	store    Store
	notifier Notifier
	users    UserDirectory
	log      *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
	dispatch func(func())
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithUserDirectory(users UserDirectory) Option {
	return func(s *Service) { s.users = users }
}

// WithDispatcher replaces how notification tasks are started. The default runs
// them inline, which keeps pushes to one recipient in send order; Notifier.Send
// must not block.
func WithDispatcher(dispatch func(func())) Option {
	return func(s *Service) {
		if dispatch != nil {
			s.dispatch = dispatch
		}
	}
}

func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		log:      slog.Default(),
		now:      time.Now,
		dispatch: func(f func()) { f() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send persists a message, then notifies the recipient and the sender.
//
// Errors: apperr.ErrInvalidParty when either party does not exist,
// apperr.ErrInternal for any other persistence failure. Notification
// outcomes never affect the result.
func (s *Service) Send(ctx context.Context, in SendInput) (Message, error) {
	const op = "messages.Send"

	in.Sender = strings.TrimSpace(in.Sender)
	in.Recipient = strings.TrimSpace(in.Recipient)
	if in.Sender == "" || in.Recipient == "" {
		s.metrics.MessageFailed(apperr.ErrInvalidParty.Error())
		return Message{}, apperr.InvalidParty(op)
	}
	if in.SentAt.IsZero() {
		in.SentAt = s.now().UTC()
	}

	m, err := s.store.Insert(ctx, InsertInput(in))
	if err != nil {
		if errors.Is(err, ErrUnknownParty) {
			s.metrics.MessageFailed(apperr.ErrInvalidParty.Error())
			return Message{}, apperr.InvalidParty(op)
		}
		s.log.Error("message.persist.fail", "op", op, "sender", in.Sender, "recipient", in.Recipient, "err", err)
		s.metrics.MessageFailed(apperr.ErrInternal.Error())
		return Message{}, apperr.Internal(op, err)
	}
	s.metrics.MessagePersisted()

	payload, err := v1.EncodeEvent(v1.NewMessageEvent(m.Wire()))
	if err != nil {
		s.log.Error("message.encode.fail", "op", op, "message_id", m.ID, "err", err)
		return m, nil
	}
	s.dispatch(func() { s.notify(m, payload) })
	return m, nil
}

// notify makes at most one registry call per distinct party, recipient first.
func (s *Service) notify(m Message, payload []byte) {
	parties := []string{m.Recipient}
	if m.Sender != m.Recipient {
		parties = append(parties, m.Sender)
	}
	for _, p := range parties {
		online := s.notifier.Send(p, payload)
		s.metrics.Notified(online)
		s.log.Debug("message.notify", "message_id", m.ID, "user_id", p, "online", online)
	}
}

// GetMessages returns the conversation {a, b}, newest first.
func (s *Service) GetMessages(ctx context.Context, a, b string) ([]Message, error) {
	const op = "messages.GetMessages"

	msgs, err := s.store.QueryConversation(ctx, a, b)
	if err != nil {
		s.log.Error("message.query.fail", "op", op, "err", err)
		return nil, apperr.Internal(op, err)
	}
	if len(msgs) == 0 {
		return nil, apperr.NotFound(op, "no messages")
	}
	return msgs, nil
}

// GetLastMessage returns the most recent message of {a, b}.
func (s *Service) GetLastMessage(ctx context.Context, a, b string) (Message, error) {
	const op = "messages.GetLastMessage"

	m, ok, err := s.store.LastMessage(ctx, a, b)
	if err != nil {
		s.log.Error("message.query.fail", "op", op, "err", err)
		return Message{}, apperr.Internal(op, err)
	}
	if !ok {
		return Message{}, apperr.NotFound(op, "no messages")
	}
	return m, nil
}

// GetConversations lists user's counterparts with the last message of each,
// most recently active first.
func (s *Service) GetConversations(ctx context.Context, user string) ([]Conversation, error) {
	const op = "messages.GetConversations"

	others, err := s.store.Counterparts(ctx, user)
	if err != nil {
		s.log.Error("message.query.fail", "op", op, "err", err)
		return nil, apperr.Internal(op, err)
	}
	if len(others) == 0 {
		return nil, apperr.NotFound(op, "no conversations")
	}

	out := make([]Conversation, 0, len(others))
	for _, other := range others {
		last, ok, err := s.store.LastMessage(ctx, user, other)
		if err != nil {
			s.log.Error("message.query.fail", "op", op, "err", err)
			return nil, apperr.Internal(op, err)
		}
		if !ok {
			continue
		}
		name, err := s.username(ctx, other)
		if err != nil {
			return nil, err
		}
		out = append(out, Conversation{UserID: other, Username: name, Last: last})
	}
	return out, nil
}

func (s *Service) username(ctx context.Context, id string) (string, error) {
	if s.users == nil {
		return "", nil
	}
	u, err := s.users.GetUserByID(ctx, id)
	switch {
	case err == nil:
		return u.Username, nil
	case errors.Is(err, apperr.ErrNotFound):
		return "", nil
	default:
		s.log.Error("message.user.lookup.fail", "user_id", id, "err", err)
		return "", apperr.Internal("messages.GetConversations", err)
	}
}
