// Package wire defines the push-channel wire contract shared by the server
// transport and the client stream: one event per text frame of the form
// "data: <JSON>\n\n", with a tagged union of event payloads.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame framing constants.
const (
	FramePrefix = "data: "
	FrameSuffix = "\n\n"
)

// Event type tags.
const (
	TypeConnected  = "connected"
	TypeNewMessage = "new_message"
)

var (
	// ErrMalformedEvent is returned for frames that do not decode into a
	// known, fully populated event. Receivers drop such frames.
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is the tagged union of push-channel payloads. Receivers switch on
// the concrete type (Connected, NewMessage) exhaustively.
type Event interface {
	EventType() string
}

// Connected acknowledges an established push channel.
type Connected struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func NewConnected(userID, username string) Connected {
	return Connected{Type: TypeConnected, UserID: userID, Username: username}
}

func (Connected) EventType() string { return TypeConnected }

// MessagePayload carries one encrypted message over the push channel. The
// content field is an opaque envelope; the server never sees plaintext.
type MessagePayload struct {
	MessageID  string `json:"messageId"`
	From       string `json:"from"`
	FromUserID string `json:"fromUserId"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

// NewMessage announces a freshly sent message to its recipient.
type NewMessage struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

func NewNewMessage(m MessagePayload) NewMessage {
	return NewMessage{Type: TypeNewMessage, Message: m}
}

func (NewMessage) EventType() string { return TypeNewMessage }

// EncodeFrame serializes an event into a single push-channel frame.
func EncodeFrame(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(FramePrefix)+len(payload)+len(FrameSuffix))
	frame = append(frame, FramePrefix...)
	frame = append(frame, payload...)
	frame = append(frame, FrameSuffix...)
	return frame, nil
}

// DecodeEvent parses the JSON payload of one frame (without the "data: "
// prefix) into a concrete event. Unknown types and events missing required
// fields are rejected with ErrMalformedEvent.
func DecodeEvent(payload []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch probe.Type {
	case TypeConnected:
		var ev Connected
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if ev.UserID == "" || ev.Username == "" {
			return nil, fmt.Errorf("%w: connected event missing fields", ErrMalformedEvent)
		}
		return ev, nil

	case TypeNewMessage:
		var ev NewMessage
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if ev.Message.MessageID == "" || ev.Message.FromUserID == "" || ev.Message.Content == "" {
			return nil, fmt.Errorf("%w: new_message event missing fields", ErrMalformedEvent)
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, probe.Type)
	}
}
