// internal/chat/models.go

package chat

import (
	"time"
)

// ConversationType distinguishes 1-1 chats from group chats.
type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// Role of a participant. Only meaningful for group conversations.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// Message content types as the platform reports them.
const (
	MessageText  = "TEXT"
	MessageImage = "IMAGE"
	MessageVideo = "VIDEO"
	MessageMixed = "MIXED"
)

// MediaAttachment is a single media item attached to a message.
type MediaAttachment struct {
	URL          string   `json:"url" validate:"required,url"`
	Type         string   `json:"type" validate:"required,oneof=image video"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
}

// Message is one message in a conversation. JSON tags follow the REST
// representation; push envelopes use different field names and are decoded
// separately in events.go.
type Message struct {
	ID               string            `json:"id"`
	ConversationID   string            `json:"conversation_id"`
	SenderID         string            `json:"sender_id"`
	SenderUsername   *string           `json:"sender_username,omitempty"`
	SenderAvatar     *string           `json:"sender_avatar,omitempty"`
	Content          *string           `json:"content,omitempty"`
	Type             string            `json:"type"`
	Media            []MediaAttachment `json:"media"`
	Status           Status            `json:"status"`
	ReplyToMessageID *string           `json:"reply_to_message_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`

	// Pending marks an optimistic local record that the server has not
	// confirmed yet. Never set on anything decoded from the wire.
	Pending bool `json:"-"`
}

// Participant is a member of a conversation.
type Participant struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Role      Role    `json:"role"`
	IsOnline  bool    `json:"is_online"`
}

// Conversation is the full detail view of a chat, as returned by the
// conversation detail endpoint.
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Name         *string          `json:"name,omitempty"`
	AvatarURL    *string          `json:"avatar_url,omitempty"`
	Participants []Participant    `json:"participants"`
	LastMessage  *Message         `json:"last_message,omitempty"`
	UnreadCount  int              `json:"unread_count"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ConversationListItem is the compact shape used by the conversation list.
type ConversationListItem struct {
	ID                 string           `json:"id"`
	Type               ConversationType `json:"type"`
	Name               *string          `json:"name,omitempty"`
	AvatarURL          *string          `json:"avatar_url,omitempty"`
	LastMessageContent *string          `json:"last_message_content,omitempty"`
	LastMessageAt      *time.Time       `json:"last_message_at,omitempty"`
	UnreadCount        int              `json:"unread_count"`
}

// ParticipantRole returns the role of userID in conv, or false if they are
// not a participant.
func (c *Conversation) ParticipantRole(userID string) (Role, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.Role, true
		}
	}
	return "", false
}

// AdminCount returns the number of admins in the conversation.
func (c *Conversation) AdminCount() int {
	n := 0
	for _, p := range c.Participants {
		if p.Role == RoleAdmin {
			n++
		}
	}
	return n
}
