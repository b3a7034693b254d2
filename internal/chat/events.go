// internal/chat/events.go
// Push-channel event envelopes. Inbound frames carry a "type" discriminator
// and camelCase fields; decoding rejects unknown or malformed shapes instead
// of crashing the stream.

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType is the discriminator of a push envelope.
type EventType string

const (
	EventConnected     EventType = "connected"
	EventDisconnected  EventType = "disconnected"
	EventPong          EventType = "pong"
	EventNewMessage    EventType = "NEW_MESSAGE"
	EventMessageAck    EventType = "MESSAGE_ACK"
	EventMessageStatus EventType = "MESSAGE_STATUS"
	EventMessageSeen   EventType = "MESSAGE_SEEN"
	EventTyping        EventType = "TYPING"
)

// ErrUnknownEvent is returned for envelopes whose type is not recognized.
var ErrUnknownEvent = errors.New("chat: unknown event type")

// Event is a decoded push-channel event.
type Event interface {
	EventType() EventType
}

// ConnectedEvent is the welcome frame sent by the server after the push
// connection is accepted, and is re-delivered after every reconnect.
type ConnectedEvent struct {
	UserID string `json:"user_id"`
}

func (ConnectedEvent) EventType() EventType { return EventConnected }

// DisconnectedEvent is synthesized locally when the push connection drops.
// It never arrives over the wire.
type DisconnectedEvent struct {
	Err error `json:"-"`
}

func (DisconnectedEvent) EventType() EventType { return EventDisconnected }

// PongEvent answers a client ping frame.
type PongEvent struct{}

func (PongEvent) EventType() EventType { return EventPong }

// NewMessageEvent announces a message written by another participant, or by
// another device of the same user.
type NewMessageEvent struct {
	ConversationID   string            `json:"conversationId"`
	MessageID        string            `json:"messageId"`
	SenderID         string            `json:"senderId"`
	SenderUsername   string            `json:"senderUsername"`
	SenderAvatar     *string           `json:"senderAvatar"`
	Content          *string           `json:"content"`
	MessageType      string            `json:"messageType"`
	Media            []MediaAttachment `json:"media"`
	Status           Status            `json:"status"`
	ReplyToMessageID *string           `json:"replyToMessageId"`
	CreatedAt        time.Time         `json:"createdAt"`
}

func (NewMessageEvent) EventType() EventType { return EventNewMessage }

// Message converts the envelope into the domain record.
func (e *NewMessageEvent) Message() *Message {
	status := e.Status
	if !status.Valid() {
		status = StatusSent
	}
	username := e.SenderUsername
	var usernamePtr *string
	if username != "" {
		usernamePtr = &username
	}
	return &Message{
		ID:               e.MessageID,
		ConversationID:   e.ConversationID,
		SenderID:         e.SenderID,
		SenderUsername:   usernamePtr,
		SenderAvatar:     e.SenderAvatar,
		Content:          e.Content,
		Type:             e.MessageType,
		Media:            e.Media,
		Status:           status,
		ReplyToMessageID: e.ReplyToMessageID,
		CreatedAt:        e.CreatedAt,
	}
}

// MessageAckEvent confirms an optimistic send over the push channel. The
// REST response for the same send carries the full record; whichever arrives
// first wins and the other becomes a no-op.
type MessageAckEvent struct {
	TempID    string `json:"tempId"`
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}

func (MessageAckEvent) EventType() EventType { return EventMessageAck }

// MessageStatusEvent advances one message in the delivery lattice.
type MessageStatusEvent struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}

func (MessageStatusEvent) EventType() EventType { return EventMessageStatus }

// MessageSeenEvent reports that a participant saw the conversation up to
// lastSeenMessageId. Every own message below SEEN upgrades to SEEN.
type MessageSeenEvent struct {
	ConversationID    string `json:"conversationId"`
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	LastSeenMessageID string `json:"lastSeenMessageId"`
}

func (MessageSeenEvent) EventType() EventType { return EventMessageSeen }

// TypingEvent reports that a participant is typing in a conversation.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
}

func (TypingEvent) EventType() EventType { return EventTyping }

// DecodeEvent parses one inbound frame into a typed event. Unknown types
// return ErrUnknownEvent; structurally invalid frames return a decode error.
// Neither must ever take down the event stream.
func DecodeEvent(data []byte) (Event, error) {
	var env struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("chat: malformed event frame: %w", err)
	}

	switch env.Type {
	case EventConnected:
		var e ConnectedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad connected frame: %w", err)
		}
		return &e, nil

	case EventPong:
		return &PongEvent{}, nil

	case EventNewMessage:
		var e NewMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad NEW_MESSAGE frame: %w", err)
		}
		if e.ConversationID == "" || e.MessageID == "" {
			return nil, errors.New("chat: NEW_MESSAGE missing conversationId or messageId")
		}
		return &e, nil

	case EventMessageAck:
		var e MessageAckEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad MESSAGE_ACK frame: %w", err)
		}
		if e.MessageID == "" {
			return nil, errors.New("chat: MESSAGE_ACK missing messageId")
		}
		return &e, nil

	case EventMessageStatus:
		var e MessageStatusEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad MESSAGE_STATUS frame: %w", err)
		}
		if e.MessageID == "" || !e.Status.Valid() {
			return nil, errors.New("chat: MESSAGE_STATUS missing messageId or status")
		}
		return &e, nil

	case EventMessageSeen:
		var e MessageSeenEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad MESSAGE_SEEN frame: %w", err)
		}
		if e.ConversationID == "" || e.UserID == "" {
			return nil, errors.New("chat: MESSAGE_SEEN missing conversationId or userId")
		}
		return &e, nil

	case EventTyping:
		var e TypingEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("chat: bad TYPING frame: %w", err)
		}
		if e.ConversationID == "" || e.UserID == "" {
			return nil, errors.New("chat: TYPING missing conversationId or userId")
		}
		return &e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// Outbound frames. The client only ever sends typing signals and pings over
// the push channel; message sends always go through REST.

// TypingFrame is the outbound typing broadcast.
type TypingFrame struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
}

// NewTypingFrame builds an outbound TYPING frame for conversationID.
func NewTypingFrame(conversationID string) TypingFrame {
	return TypingFrame{Type: EventTyping, ConversationID: conversationID}
}

// PingFrame is the outbound application-level keepalive.
type PingFrame struct {
	Type string `json:"type"`
}

// NewPingFrame builds an outbound ping frame.
func NewPingFrame() PingFrame {
	return PingFrame{Type: "ping"}
}
