/*
Package chat implements the realtime side of the server: the registry of admitted
connections, the broadcaster that fans frames out to them, the hub goroutine that
owns both, and the per-socket client with its read and write pumps.

Every frame on the socket is a JSON object {"event": <name>, "data": <payload>}.
*/
package chat

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/randx"
)

// EventType names a realtime frame.
type EventType string

const (
	// client -> server
	EventUserJoin    EventType = "user:join"
	EventMessageSend EventType = "message:send"

	// server -> client
	EventMessageReceived EventType = "message:received"
	EventUsersUpdate     EventType = "users:update"
	EventUserJoined      EventType = "user:joined"
	EventUserLeft        EventType = "user:left"
	EventError           EventType = "error"
	EventTokenRefresh    EventType = "token:refresh"
)

const (
	// MaxContentBytes is the maximum size of a chat message's content.
	MaxContentBytes = 5000

	// MessageKindSystem marks synthetic join and leave notices.
	MessageKindSystem = "system"
)

// Frame is an inbound frame whose data is decoded by the handler of its event.
type Frame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// EncodeFrame marshals an outbound frame.
func EncodeFrame(event EventType, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

// ChatMessage is a relayed chat message or a system notice.
type ChatMessage struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Sender       string    `json:"sender,omitempty"`
	SenderAvatar string    `json:"senderAvatar,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type,omitempty"`
}

// NewChatMessage builds a message from the sender's admitted identity.
func NewChatMessage(draft MessageDraft, sender user.Snapshot, at time.Time) ChatMessage {
	id := draft.ID
	if id == "" {
		id = randx.MessageID()
	}

	return ChatMessage{
		ID:           id,
		Content:      draft.Content,
		Sender:       sender.Username,
		SenderAvatar: sender.Avatar,
		Timestamp:    at.UTC(),
	}
}

// SystemMessage builds a sender-less notice.
func SystemMessage(text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        randx.MessageID(),
		Content:   text,
		Timestamp: at.UTC(),
		Type:      MessageKindSystem,
	}
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TokenRefreshPayload is the data of a token:refresh frame.
type TokenRefreshPayload struct {
	Token string `json:"token"`
}

// MessageDraft is the validated content of a message:send frame.
type MessageDraft struct {
	// ID is the client-generated id, kept so the sender can match its local echo.
	ID      string
	Content string
}

// DecodeMessageDraft accepts either a bare string or {"content", "id"}.
// Other fields a client sends (sender, timestamp...) are ignored: the hub
// fills them from the admitted identity.
func DecodeMessageDraft(data json.RawMessage) (MessageDraft, *errs.CustomError) {
	var draft MessageDraft

	if isJSONString(data) {
		if err := json.Unmarshal(data, &draft.Content); err != nil {
			return draft, errs.NewError(errs.ErrInvalidJSONFormat)
		}
	} else {
		var body struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return draft, errs.NewError(errs.ErrInvalidJSONFormat)
		}
		draft.Content = body.Content
		if randx.IsUUID(body.ID) {
			draft.ID = body.ID
		}
	}

	draft.Content = strings.TrimSpace(draft.Content)
	if draft.Content == "" {
		return draft, errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len(draft.Content) > MaxContentBytes {
		return draft, errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes)
	}

	return draft, nil
}

// DecodeJoinName accepts either a bare string or {"username"} and validates it.
func DecodeJoinName(data json.RawMessage) (string, *errs.CustomError) {
	var name string

	if isJSONString(data) {
		if err := json.Unmarshal(data, &name); err != nil {
			return "", errs.NewError(errs.ErrInvalidJSONFormat)
		}
	} else {
		var body struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return "", errs.NewError(errs.ErrInvalidJSONFormat)
		}
		name = body.Username
	}

	name = strings.TrimSpace(name)
	if customErr := user.ValidateUsername(name); customErr != nil {
		return "", customErr
	}
	return name, nil
}

func isJSONString(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '"'
}
