package messages

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/ids"
)

const memMaxMessages = 100_000

// PartyDirectory resolves whether an identity exists.
type PartyDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type memMessage struct {
	Message
	seq int64
}

// InMemoryStore is a dev-only Store used when no database is configured.
// When a PartyDirectory is set, Insert enforces the same referential rule as Postgres.
//
// It is not durable: history is lost on restart, and once more than the
// configured maximum (default 100000) messages are held, the oldest are
// discarded. The first discard is logged at warn.
type InMemoryStore struct {
	parties PartyDirectory
	log     *slog.Logger
	max     int

	mu      sync.RWMutex
	seq     int64
	msgs    []memMessage
	trimmed bool
}

type InMemoryOption func(*InMemoryStore)

func WithStoreLogger(log *slog.Logger) InMemoryOption {
	return func(s *InMemoryStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxMessages caps retained history; n <= 0 keeps the default.
func WithMaxMessages(n int) InMemoryOption {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.max = n
		}
	}
}

func NewInMemoryStore(parties PartyDirectory, opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		parties: parties,
		log:     slog.Default(),
		max:     memMaxMessages,
		msgs:    make([]memMessage, 0, 256),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Insert(ctx context.Context, in InsertInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	sender, recipient := strings.TrimSpace(in.Sender), strings.TrimSpace(in.Recipient)
	if sender == "" || recipient == "" {
		return Message{}, ErrUnknownParty
	}
	if err := s.checkParties(ctx, sender, recipient); err != nil {
		return Message{}, err
	}

	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	id, err := ids.NewULID(sentAt)
	if err != nil {
		return Message{}, fmt.Errorf("messages: id: %w", err)
	}

	m := Message{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Body:      in.Body,
		Kind:      in.Kind,
		SentAt:    sentAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.msgs = append(s.msgs, memMessage{Message: m, seq: s.seq})
	if len(s.msgs) > s.max {
		if !s.trimmed {
			s.trimmed = true
			s.log.Warn("message.store.memory.trim", "max_messages", s.max)
		}
		s.msgs = s.msgs[len(s.msgs)-s.max:]
	}
	return m, nil
}

func (s *InMemoryStore) checkParties(ctx context.Context, parties ...string) error {
	if s.parties == nil {
		return nil
	}
	for _, p := range lo.Uniq(parties) {
		ok, err := s.parties.Exists(ctx, p)
		if err != nil {
			return fmt.Errorf("messages: resolve party: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParty, p)
		}
	}
	return nil
}

func (s *InMemoryStore) QueryConversation(ctx context.Context, a, b string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return lo.Map(s.conversation(a, b), func(m memMessage, _ int) Message { return m.Message }), nil
}

func (s *InMemoryStore) LastMessage(ctx context.Context, a, b string) (Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, false, err
	}
	conv := s.conversation(a, b)
	if len(conv) == 0 {
		return Message{}, false, nil
	}
	return conv[0].Message, true, nil
}

func (s *InMemoryStore) Counterparts(ctx context.Context, user string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	mine := lo.Filter(s.msgs, func(m memMessage, _ int) bool {
		return m.Sender == user || m.Recipient == user
	})
	s.mu.RUnlock()

	sortNewestFirst(mine)
	return lo.Uniq(lo.Map(mine, func(m memMessage, _ int) string { return m.Counterpart(user) })), nil
}

// conversation returns a newest-first snapshot of {a, b}.
func (s *InMemoryStore) conversation(a, b string) []memMessage {
	s.mu.RLock()
	out := lo.Filter(s.msgs, func(m memMessage, _ int) bool { return m.Between(a, b) })
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

func sortNewestFirst(msgs []memMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.After(msgs[j].SentAt)
		}
		return msgs[i].seq > msgs[j].seq
	})
}
