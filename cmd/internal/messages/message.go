package messages

import (
	"time"

	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

// Message is immutable once persisted.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Body      string
	Kind      int
	SentAt    time.Time
}

func (m Message) Wire() v1.Message {
	return v1.Message{
		ID:        m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		MsgData:   m.Body,
		MsgType:   m.Kind,
		TimeSent:  v1.UnixMilli(m.SentAt),
	}
}

// Between reports whether m belongs to the conversation {a, b}.
func (m Message) Between(a, b string) bool {
	return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
}

// Counterpart returns the other party of m as seen by user.
func (m Message) Counterpart(user string) string {
	if m.Sender == user {
		return m.Recipient
	}
	return m.Sender
}

// Conversation is one entry of a user's conversation list.
type Conversation struct {
	UserID   string
	Username string
	Last     Message
}
