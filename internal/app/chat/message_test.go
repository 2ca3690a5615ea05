package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"livechat/internal/pkg/errs"
)

func TestDecodeMessageDraft(t *testing.T) {
	const clientID = "7b0c3f3e-8f4a-4d0e-9c55-2a4b9f1f6f11"

	tests := []struct {
		name        string
		data        string
		wantContent string
		wantID      string
		wantCode    int
	}{
		{name: "bare string", data: `"  hello  "`, wantContent: "hello"},
		{name: "object", data: `{"content":"hi","id":"` + clientID + `"}`, wantContent: "hi", wantID: clientID},
		{name: "full client message", data: `{"id":"` + clientID + `","content":"hi","sender":"mallory","timestamp":"2024-01-01T00:00:00Z"}`, wantContent: "hi", wantID: clientID},
		{name: "non uuid id dropped", data: `{"content":"hi","id":"1"}`, wantContent: "hi"},
		{name: "blank", data: `"   "`, wantCode: errs.ErrMessageContentEmpty},
		{name: "missing content", data: `{}`, wantCode: errs.ErrMessageContentEmpty},
		{name: "not json", data: `{content`, wantCode: errs.ErrInvalidJSONFormat},
		{name: "too long", data: `"` + strings.Repeat("a", MaxContentBytes+1) + `"`, wantCode: errs.ErrMessageContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, customErr := DecodeMessageDraft(json.RawMessage(tt.data))
			if tt.wantCode != 0 {
				require.NotNil(t, customErr)
				require.Equal(t, tt.wantCode, customErr.Code)
				return
			}
			require.Nil(t, customErr)
			require.Equal(t, tt.wantContent, draft.Content)
			require.Equal(t, tt.wantID, draft.ID)
		})
	}
}

func TestDecodeMessageDraftTooLongMessage(t *testing.T) {
	_, customErr := DecodeMessageDraft(json.RawMessage(`"` + strings.Repeat("a", MaxContentBytes+1) + `"`))
	require.NotNil(t, customErr)
	require.Equal(t, "Message is too long (max 5000 bytes).", customErr.Message)
}

func TestDecodeJoinName(t *testing.T) {
	name, customErr := DecodeJoinName(json.RawMessage(`" alice "`))
	require.Nil(t, customErr)
	require.Equal(t, "alice", name)

	name, customErr = DecodeJoinName(json.RawMessage(`{"username":"bob"}`))
	require.Nil(t, customErr)
	require.Equal(t, "bob", name)

	_, customErr = DecodeJoinName(json.RawMessage(`"al"`))
	require.NotNil(t, customErr)
	require.Equal(t, errs.ErrInvalidUsername, customErr.Code)

	_, customErr = DecodeJoinName(json.RawMessage(`"` + strings.Repeat("x", 21) + `"`))
	require.NotNil(t, customErr)
	require.Equal(t, errs.ErrInvalidUsername, customErr.Code)
}

func TestEncodeFrame(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := ChatMessage{ID: "m1", Content: "hi", Sender: "alice", Timestamp: at}

	frame, err := EncodeFrame(EventMessageReceived, msg)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"event": "message:received",
		"data": {"id": "m1", "content": "hi", "sender": "alice", "timestamp": "2024-05-01T12:00:00Z"}
	}`, string(frame))

	frame, err = EncodeFrame(EventError, ErrorPayload{Code: errs.ErrNotJoined, Message: "nope"})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"error","data":{"code":2203,"message":"nope"}}`, string(frame))
}
