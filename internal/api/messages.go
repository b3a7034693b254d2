// internal/api/messages.go

package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/common/utils"
)

// DefaultPageSize is the server's default history page size.
const DefaultPageSize = 50

// ErrEmptyMessage is returned when a send has neither content nor media.
var ErrEmptyMessage = errors.New("api: message must have content or media")

// MessagesPage is one backward page of history, newest-first from the
// server; Data is delivered oldest-first for direct display.
type MessagesPage struct {
	Data       []*chat.Message `json:"data"`
	NextCursor *string         `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
}

// SendMessageRequest is the body of a message send.
type SendMessageRequest struct {
	Content          string                 `json:"content,omitempty" validate:"max=4000"`
	Media            []chat.MediaAttachment `json:"media,omitempty" validate:"max=10,dive"`
	ReplyToMessageID *string                `json:"reply_to_message_id,omitempty"`
}

// ListMessages fetches one page of conversation history. An empty cursor
// requests the most recent page.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (*MessagesPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page MessagesPage
	path := fmt.Sprintf("/messages/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.do(ctx, "GET", path, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendMessage posts a new message and returns the server-confirmed record.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req *SendMessageRequest) (*chat.Message, error) {
	if req.Content == "" && len(req.Media) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var msg chat.Message
	path := fmt.Sprintf("/messages/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.doWrapped(ctx, "POST", path, nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkSeen marks the conversation as seen up to messageID.
func (c *Client) MarkSeen(ctx context.Context, conversationID, messageID string) error {
	q := url.Values{}
	q.Set("message_id", messageID)
	path := fmt.Sprintf("/messages/conversations/%s/seen", url.PathEscape(conversationID))
	return c.do(ctx, "PATCH", path, q, nil, nil)
}
