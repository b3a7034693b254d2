// internal/conversations/service.go
// Conversation lifecycle: opening direct chats, creating groups, and
// participant management. Group-role invariants are checked locally before
// any network call so obvious mistakes never leave the client.

package conversations

import (
	"context"
	"errors"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/api"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

var (
	ErrNotGroup       = errors.New("conversations: operation only applies to group chats")
	ErrNotParticipant = errors.New("conversations: not a participant in this conversation")
	ErrNotAdmin       = errors.New("conversations: only admins can manage participants")
	ErrLastAdmin      = errors.New("conversations: a group must keep at least one admin")
	ErrSelfDirect     = errors.New("conversations: cannot open a direct chat with yourself")
)

// LifecycleAPI is the slice of the REST client the service uses.
type LifecycleAPI interface {
	GetOrCreateDirect(ctx context.Context, peerID string) (*api.CreatedConversation, error)
	CreateGroup(ctx context.Context, req *api.CreateGroupRequest) (*api.CreatedConversation, error)
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	AddParticipants(ctx context.Context, conversationID string, userIDs []string) error
	RemoveParticipant(ctx context.Context, conversationID, userID string) error
}

// Service performs conversation lifecycle operations for one session.
type Service struct {
	api         LifecycleAPI
	localUserID string
}

// NewService creates a lifecycle service.
func NewService(client LifecycleAPI, localUserID string) *Service {
	return &Service{api: client, localUserID: localUserID}
}

// OpenDirect returns the direct conversation with peerID, creating it if
// needed. Idempotent per peer.
func (s *Service) OpenDirect(ctx context.Context, peerID string) (*api.CreatedConversation, error) {
	if peerID == s.localUserID {
		return nil, ErrSelfDirect
	}
	return s.api.GetOrCreateDirect(ctx, peerID)
}

// CreateGroup creates a group conversation. The creator becomes ADMIN and
// at least two other participants are required, so every group starts with
// three or more members.
func (s *Service) CreateGroup(ctx context.Context, name string, participantIDs []string) (*api.CreatedConversation, error) {
	return s.api.CreateGroup(ctx, &api.CreateGroupRequest{
		Name:           name,
		ParticipantIDs: participantIDs,
	})
}

// Detail fetches the full conversation with participants.
func (s *Service) Detail(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	return s.api.GetConversation(ctx, conversationID)
}

// AddParticipants adds users to a group. Only admins may do this; the check
// runs against the local snapshot before the request goes out.
func (s *Service) AddParticipants(ctx context.Context, conv *chat.Conversation, userIDs []string) error {
	if conv.Type != chat.ConversationGroup {
		return ErrNotGroup
	}
	role, ok := conv.ParticipantRole(s.localUserID)
	if !ok {
		return ErrNotParticipant
	}
	if role != chat.RoleAdmin {
		return ErrNotAdmin
	}
	return s.api.AddParticipants(ctx, conv.ID, userIDs)
}

// RemoveParticipant removes targetID from a group. Self-removal is always
// allowed for members; removing anyone else requires ADMIN. Removing the
// last admin of a group that still has other members is rejected before any
// network call, whether by an admin or by that admin leaving.
func (s *Service) RemoveParticipant(ctx context.Context, conv *chat.Conversation, targetID string) error {
	if conv.Type != chat.ConversationGroup {
		return ErrNotGroup
	}
	actorRole, ok := conv.ParticipantRole(s.localUserID)
	if !ok {
		return ErrNotParticipant
	}
	targetRole, ok := conv.ParticipantRole(targetID)
	if !ok {
		return ErrNotParticipant
	}

	if targetID != s.localUserID && actorRole != chat.RoleAdmin {
		return ErrNotAdmin
	}
	if targetRole == chat.RoleAdmin && conv.AdminCount() == 1 && len(conv.Participants) > 1 {
		return ErrLastAdmin
	}
	return s.api.RemoveParticipant(ctx, conv.ID, targetID)
}

// Leave removes the local user from a group conversation.
func (s *Service) Leave(ctx context.Context, conv *chat.Conversation) error {
	return s.RemoveParticipant(ctx, conv, s.localUserID)
}
