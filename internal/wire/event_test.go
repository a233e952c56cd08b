package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_Format(t *testing.T) {
	frame, err := EncodeFrame(NewConnected("u1", "alice"))
	require.NoError(t, err)

	s := string(frame)
	assert.True(t, strings.HasPrefix(s, "data: "), "frame: %q", s)
	assert.True(t, strings.HasSuffix(s, "\n\n"), "frame: %q", s)
	assert.Contains(t, s, `"type":"connected"`)
}

func TestDecodeEvent_Connected(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"connected","userId":"u1","username":"alice"}`))
	require.NoError(t, err)

	connected, ok := ev.(Connected)
	require.True(t, ok)
	assert.Equal(t, "u1", connected.UserID)
	assert.Equal(t, "alice", connected.Username)
}

func TestDecodeEvent_NewMessage(t *testing.T) {
	payload := `{"type":"new_message","message":{"messageId":"m1","from":"alice","fromUserId":"u1","content":"{...}","timestamp":1700000000000,"status":"sent"}}`
	ev, err := DecodeEvent([]byte(payload))
	require.NoError(t, err)

	nm, ok := ev.(NewMessage)
	require.True(t, ok)
	assert.Equal(t, "m1", nm.Message.MessageID)
	assert.Equal(t, "alice", nm.Message.From)
	assert.Equal(t, "sent", nm.Message.Status)
}

func TestDecodeEvent_RoundTripThroughFrame(t *testing.T) {
	in := NewNewMessage(MessagePayload{
		MessageID:  "m1",
		From:       "alice",
		FromUserID: "u1",
		Content:    `{"encryptedKey":"k","iv":"i","encryptedMessage":"c"}`,
		Timestamp:  42,
		Status:     "sent",
	})

	frame, err := EncodeFrame(in)
	require.NoError(t, err)

	payload := strings.TrimSuffix(strings.TrimPrefix(string(frame), FramePrefix), FrameSuffix)
	out, err := DecodeEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "garbage"},
		{"unknown type", `{"type":"presence_ping"}`},
		{"missing type", `{"userId":"u1"}`},
		{"connected missing username", `{"type":"connected","userId":"u1"}`},
		{"new_message missing message", `{"type":"new_message"}`},
		{"new_message missing content", `{"type":"new_message","message":{"messageId":"m1","fromUserId":"u1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
