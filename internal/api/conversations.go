// internal/api/conversations.go

package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/common/utils"
)

// ConversationsPage is one page of the user's conversation list.
type ConversationsPage struct {
	Data       []*chat.ConversationListItem `json:"data"`
	NextCursor *string                      `json:"next_cursor"`
	HasMore    bool                         `json:"has_more"`
}

// CreatedConversation is the compact confirmation returned by the
// conversation-creating endpoints.
type CreatedConversation struct {
	ID        string                `json:"id"`
	Type      chat.ConversationType `json:"type"`
	Name      *string               `json:"name,omitempty"`
	AvatarURL *string               `json:"avatar_url,omitempty"`
}

// CreateGroupRequest is the body for creating a group conversation. The
// creator joins as ADMIN, so two other participants make the minimum of
// three total members.
type CreateGroupRequest struct {
	Type           chat.ConversationType `json:"type" validate:"required,oneof=GROUP"`
	Name           string                `json:"name" validate:"required,min=1,max=100"`
	ParticipantIDs []string              `json:"participant_ids" validate:"required,min=2,dive,required"`
}

type addParticipantsRequest struct {
	UserIDs []string `json:"user_ids"`
}

// ListConversations fetches one page of the conversation list. An empty
// cursor requests the most recent page.
func (c *Client) ListConversations(ctx context.Context, cursor string, limit int) (*ConversationsPage, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page ConversationsPage
	if err := c.do(ctx, "GET", "/messages/conversations", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetConversation fetches the full conversation detail with participants.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	var conv chat.Conversation
	path := "/messages/conversations/" + url.PathEscape(conversationID)
	if err := c.do(ctx, "GET", path, nil, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateDirect returns the direct conversation with peerID, creating
// it if none exists. The endpoint is idempotent.
func (c *Client) GetOrCreateDirect(ctx context.Context, peerID string) (*CreatedConversation, error) {
	var created CreatedConversation
	path := "/messages/direct/" + url.PathEscape(peerID)
	if err := c.doWrapped(ctx, "POST", path, nil, nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateGroup creates a group conversation with the given name and other
// participants.
func (c *Client) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*CreatedConversation, error) {
	req.Type = chat.ConversationGroup
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var created CreatedConversation
	if err := c.doWrapped(ctx, "POST", "/messages/conversations", nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddParticipants adds users to a group conversation.
func (c *Client) AddParticipants(ctx context.Context, conversationID string, userIDs []string) error {
	path := fmt.Sprintf("/messages/conversations/%s/participants", url.PathEscape(conversationID))
	return c.do(ctx, "POST", path, nil, &addParticipantsRequest{UserIDs: userIDs}, nil)
}

// RemoveParticipant removes a user from a group conversation. Removing
// yourself leaves the conversation.
func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	path := fmt.Sprintf("/messages/conversations/%s/participants/%s",
		url.PathEscape(conversationID), url.PathEscape(userID))
	return c.do(ctx, "DELETE", path, nil, nil, nil)
}
