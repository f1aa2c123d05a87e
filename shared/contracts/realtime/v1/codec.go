package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMalformed        = errors.New("malformed frame")
	ErrMissingRecipient = errors.New("missing recipient")
)

// Validate checks a send request independent of transport.
func (r NewMessageRequest) Validate() error {
	if strings.TrimSpace(r.Recipient) == "" {
		return ErrMissingRecipient
	}
	if r.MsgType != nil && (*r.MsgType < math.MinInt16 || *r.MsgType > math.MaxInt16) {
		return fmt.Errorf("%w: msg_type out of range", ErrMalformed)
	}
	if r.TimeSent != nil && *r.TimeSent < 0 {
		return fmt.Errorf("%w: negative time_sent", ErrMalformed)
	}
	if r.TimeSent != nil && *r.TimeSent > MaxTimeSent {
		return fmt.Errorf("%w: time_sent out of range", ErrMalformed)
	}
	return nil
}

// DecodeClientFrame parses and validates one inbound websocket frame.
func DecodeClientFrame(b []byte) (NewMessageRequest, error) {
	var f ClientFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return NewMessageRequest{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.NewMessage == nil {
		return NewMessageRequest{}, fmt.Errorf("%w: missing newMessage", ErrMalformed)
	}
	if err := f.NewMessage.Validate(); err != nil {
		return NewMessageRequest{}, err
	}
	return *f.NewMessage, nil
}

// EncodeEvent marshals an outbound event.
func EncodeEvent(e Event) ([]byte, error) {
	if e.Type != TypeNewMessage || e.NewMessage == nil {
		return nil, fmt.Errorf("unsupported event %q", e.Type)
	}
	return json.Marshal(e)
}
