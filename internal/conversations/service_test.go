// internal/conversations/service_test.go

package conversations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/api"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

// fakeLifecycleAPI records calls; tests that expect a local rejection set
// failOnCall to prove the request never left the client.
type fakeLifecycleAPI struct {
	t          *testing.T
	failOnCall bool

	directPeers []string
	groups      []*api.CreateGroupRequest
	added       [][]string
	removed     []string
}

func (f *fakeLifecycleAPI) called(what string) {
	if f.failOnCall {
		f.t.Fatalf("%s must be rejected locally, but a request went out", what)
	}
}

func (f *fakeLifecycleAPI) GetOrCreateDirect(ctx context.Context, peerID string) (*api.CreatedConversation, error) {
	f.called("GetOrCreateDirect")
	f.directPeers = append(f.directPeers, peerID)
	return &api.CreatedConversation{ID: "c-direct", Type: chat.ConversationDirect}, nil
}

func (f *fakeLifecycleAPI) CreateGroup(ctx context.Context, req *api.CreateGroupRequest) (*api.CreatedConversation, error) {
	f.called("CreateGroup")
	f.groups = append(f.groups, req)
	return &api.CreatedConversation{ID: "c-group", Type: chat.ConversationGroup}, nil
}

func (f *fakeLifecycleAPI) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	return &chat.Conversation{ID: conversationID}, nil
}

func (f *fakeLifecycleAPI) AddParticipants(ctx context.Context, conversationID string, userIDs []string) error {
	f.called("AddParticipants")
	f.added = append(f.added, userIDs)
	return nil
}

func (f *fakeLifecycleAPI) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	f.called("RemoveParticipant")
	f.removed = append(f.removed, userID)
	return nil
}

func group(participants ...chat.Participant) *chat.Conversation {
	return &chat.Conversation{
		ID:           "c-g",
		Type:         chat.ConversationGroup,
		Participants: participants,
	}
}

func admin(id string) chat.Participant {
	return chat.Participant{UserID: id, Role: chat.RoleAdmin}
}

func member(id string) chat.Participant {
	return chat.Participant{UserID: id, Role: chat.RoleMember}
}

func TestOpenDirect(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv, err := svc.OpenDirect(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, "c-direct", conv.ID)
	assert.Equal(t, []string{"u-2"}, fake.directPeers)
}

func TestOpenDirectWithSelfRejected(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	_, err := svc.OpenDirect(context.Background(), me)
	assert.ErrorIs(t, err, ErrSelfDirect)
}

func TestCreateGroup(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv, err := svc.CreateGroup(context.Background(), "squad", []string{"u-2", "u-3"})
	require.NoError(t, err)
	assert.Equal(t, "c-group", conv.ID)
	require.Len(t, fake.groups, 1)
	assert.Equal(t, "squad", fake.groups[0].Name)
}

func TestAddParticipantsRequiresAdmin(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	conv := group(admin("u-2"), member(me), member("u-3"))
	err := svc.AddParticipants(context.Background(), conv, []string{"u-4"})
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestAddParticipantsRequiresMembership(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	conv := group(admin("u-2"), member("u-3"))
	err := svc.AddParticipants(context.Background(), conv, []string{"u-4"})
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAddParticipantsRejectsDirect(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	conv := &chat.Conversation{
		ID: "c-d", Type: chat.ConversationDirect,
		Participants: []chat.Participant{member(me), member("u-2")},
	}
	err := svc.AddParticipants(context.Background(), conv, []string{"u-3"})
	assert.ErrorIs(t, err, ErrNotGroup)
}

func TestAddParticipantsAsAdmin(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv := group(admin(me), member("u-2"), member("u-3"))
	require.NoError(t, svc.AddParticipants(context.Background(), conv, []string{"u-4", "u-5"}))
	require.Len(t, fake.added, 1)
	assert.Equal(t, []string{"u-4", "u-5"}, fake.added[0])
}

func TestRemoveParticipantAsAdmin(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv := group(admin(me), member("u-2"), member("u-3"))
	require.NoError(t, svc.RemoveParticipant(context.Background(), conv, "u-2"))
	assert.Equal(t, []string{"u-2"}, fake.removed)
}

func TestRemoveParticipantRequiresAdmin(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	conv := group(admin("u-2"), member(me), member("u-3"))
	err := svc.RemoveParticipant(context.Background(), conv, "u-3")
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestMemberMayRemoveSelf(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv := group(admin("u-2"), member(me), member("u-3"))
	require.NoError(t, svc.Leave(context.Background(), conv))
	assert.Equal(t, []string{me}, fake.removed)
}

func TestLastAdminCannotLeavePopulatedGroup(t *testing.T) {
	// The sole admin of a group with other members can neither leave nor
	// be removed; the request must die before the network.
	fake := &fakeLifecycleAPI{t: t, failOnCall: true}
	svc := NewService(fake, me)

	conv := group(admin(me), member("u-2"), member("u-3"))
	assert.ErrorIs(t, svc.Leave(context.Background(), conv), ErrLastAdmin)
	assert.ErrorIs(t, svc.RemoveParticipant(context.Background(), conv, me), ErrLastAdmin)
}

func TestLastAdminMayLeaveEmptyGroup(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	// Alone in the group: leaving is fine.
	conv := group(admin(me))
	require.NoError(t, svc.Leave(context.Background(), conv))
	assert.Equal(t, []string{me}, fake.removed)
}

func TestAdminMayLeaveWhenAnotherAdminRemains(t *testing.T) {
	fake := &fakeLifecycleAPI{t: t}
	svc := NewService(fake, me)

	conv := group(admin(me), admin("u-2"), member("u-3"))
	require.NoError(t, svc.Leave(context.Background(), conv))
	assert.Equal(t, []string{me}, fake.removed)
}
