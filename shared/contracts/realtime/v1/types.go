// Package v1 defines the realtime wire contract shared by the server and its clients.
//
// Client to server, one frame per message:
//
//	{"newMessage": {"recipient": "...", "msg_data": "...", "time_sent": 1700000000000, "msg_type": 0}}
//
// Server to either party of a conversation:
//
//	{"type": "newMessage", "newMessage": {"id": "...", "sender": "...", ...}}
//
// Times on the wire are unix milliseconds.
package v1

import "time"

// TypeNewMessage tags a new-message event (server -> client).
const TypeNewMessage = "newMessage"

// Message is a persisted message as clients see it.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	MsgData   string `json:"msg_data"`
	MsgType   int    `json:"msg_type"`
	TimeSent  int64  `json:"time_sent"`
}

// NewMessageRequest is a send request. TimeSent and MsgType are optional.
type NewMessageRequest struct {
	Recipient string `json:"recipient"`
	MsgData   string `json:"msg_data"`
	TimeSent  *int64 `json:"time_sent,omitempty"`
	MsgType   *int   `json:"msg_type,omitempty"`
}

// ClientFrame is the only frame a client sends over the websocket.
type ClientFrame struct {
	NewMessage *NewMessageRequest `json:"newMessage"`
}

// Event is the only frame the server pushes over the websocket.
type Event struct {
	Type       string   `json:"type"`
	NewMessage *Message `json:"newMessage,omitempty"`
}

func NewMessageEvent(m Message) Event {
	return Event{Type: TypeNewMessage, NewMessage: &m}
}

// MaxTimeSent is the largest accepted time_sent: the 48-bit millisecond
// range of a ULID timestamp, which is also within Postgres timestamptz.
const MaxTimeSent int64 = 1<<48 - 1

func UnixMilli(t time.Time) int64 { return t.UnixMilli() }

func FromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
