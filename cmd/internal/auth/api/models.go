package authapi

import (
	"github.com/grebenindmitry/babilado-backend/cmd/identity"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/auth/session"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/messages"
	v1 "github.com/grebenindmitry/babilado-backend/shared/contracts/realtime/v1"
)

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type sendMessageRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	MsgData   string `json:"msg_data"`
	MsgType   *int   `json:"msg_type,omitempty" validate:"omitempty,min=-32768,max=32767"`
	TimeSent  *int64 `json:"time_sent,omitempty" validate:"omitempty,min=0,max=281474976710655"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type sessionResponse struct {
	ID         string       `json:"id"`
	User       userResponse `json:"user"`
	ExpiryTime int64        `json:"expiryTime"`
}

type conversationResponse struct {
	User        userResponse `json:"user"`
	LastMessage v1.Message   `json:"lastMessage"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username}
}

func toSessionResponse(s session.Session, u identity.User) sessionResponse {
	return sessionResponse{
		ID:         s.Token,
		User:       toUserResponse(u),
		ExpiryTime: v1.UnixMilli(s.Expiry),
	}
}

func toMessageList(msgs []messages.Message) []v1.Message {
	out := make([]v1.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Wire())
	}
	return out
}

func toConversationList(convs []messages.Conversation) []conversationResponse {
	out := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationResponse{
			User:        userResponse{ID: c.UserID, Username: c.Username},
			LastMessage: c.Last.Wire(),
		})
	}
	return out
}
