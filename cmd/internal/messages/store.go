package messages

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownParty is returned by Store.Insert when the sender or recipient does not exist.
var ErrUnknownParty = errors.New("messages: unknown party")

type InsertInput struct {
	Sender    string
	Recipient string
	Body      string
	Kind      int
	SentAt    time.Time
}

// Store is the durable message log.
//
// Requirements:
//   - Insert assigns the id and wraps ErrUnknownParty on a referential failure.
//   - Conversation queries treat {a, b} as unordered and return newest first,
//     with a deterministic tie-break so (a, b) and (b, a) produce the same sequence.
//   - An identity the store cannot represent matches nothing; it is not an error.
type Store interface {
	Insert(ctx context.Context, in InsertInput) (Message, error)
	QueryConversation(ctx context.Context, a, b string) ([]Message, error)
	LastMessage(ctx context.Context, a, b string) (Message, bool, error)

	// Counterparts lists everyone user has exchanged messages with, most recent first.
	Counterparts(ctx context.Context, user string) ([]string, error)

	Close() error
}
