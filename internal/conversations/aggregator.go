// internal/conversations/aggregator.go
// Conversation list aggregator: the single source of truth for unread
// counts and the global badge. Refreshed by REST snapshot on panel open and
// kept current by push deltas in between.

package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/api"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

// ListAPI is the slice of the REST client the aggregator uses.
type ListAPI interface {
	ListConversations(ctx context.Context, cursor string, limit int) (*api.ConversationsPage, error)
}

// Aggregator maintains the conversation list and per-conversation unread
// counts for the active user. No other component renders the global badge.
type Aggregator struct {
	api         ListAPI
	localUserID string
	onChange    func()

	mu     sync.Mutex
	items  map[string]*chat.ConversationListItem
	active string // focused conversation, "" when none
}

// NewAggregator creates an aggregator for the session's user. onChange
// fires after every visible change and may be nil.
func NewAggregator(client ListAPI, localUserID string, onChange func()) *Aggregator {
	return &Aggregator{
		api:         client,
		localUserID: localUserID,
		onChange:    onChange,
		items:       make(map[string]*chat.ConversationListItem),
	}
}

// Refresh replaces the list with a full REST snapshot, following cursors
// until the server reports no more pages.
func (a *Aggregator) Refresh(ctx context.Context) error {
	items := make(map[string]*chat.ConversationListItem)
	cursor := ""
	for {
		page, err := a.api.ListConversations(ctx, cursor, 0)
		if err != nil {
			return err
		}
		for _, item := range page.Data {
			cp := *item
			items[item.ID] = &cp
		}
		if !page.HasMore || page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}

	a.mu.Lock()
	a.items = items
	a.mu.Unlock()
	a.notify()
	return nil
}

// SetActive marks a conversation as the focused chat window. Incoming
// messages for the focused conversation do not bump its unread count; the
// open window marks them seen instead.
func (a *Aggregator) SetActive(conversationID string) {
	a.mu.Lock()
	a.active = conversationID
	a.mu.Unlock()
}

// ClearActive reports that no chat window is focused.
func (a *Aggregator) ClearActive() {
	a.SetActive("")
}

// HandleEvent applies one push event to the list.
func (a *Aggregator) HandleEvent(ev chat.Event) {
	e, ok := ev.(*chat.NewMessageEvent)
	if !ok {
		return
	}

	a.mu.Lock()
	item, known := a.items[e.ConversationID]
	if !known {
		// First message of a conversation this client has not listed
		// yet; a placeholder keeps the badge honest until the next
		// snapshot fills in names and avatars.
		item = &chat.ConversationListItem{ID: e.ConversationID, Type: chat.ConversationDirect}
		if e.SenderUsername != "" {
			name := e.SenderUsername
			item.Name = &name
		}
		a.items[e.ConversationID] = item
	}

	item.LastMessageContent = previewOf(e)
	at := e.CreatedAt
	item.LastMessageAt = &at

	if e.SenderID != a.localUserID && e.ConversationID != a.active {
		item.UnreadCount++
	}
	a.mu.Unlock()
	a.notify()
}

// MarkSeen zeroes the unread count for a conversation after the local
// user's own mark-seen action, without any REST refresh.
func (a *Aggregator) MarkSeen(conversationID string) {
	a.mu.Lock()
	item, ok := a.items[conversationID]
	changed := ok && item.UnreadCount != 0
	if ok {
		item.UnreadCount = 0
	}
	a.mu.Unlock()
	if changed {
		a.notify()
	}
}

// Unread returns the unread count for one conversation.
func (a *Aggregator) Unread(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if item, ok := a.items[conversationID]; ok {
		return item.UnreadCount
	}
	return 0
}

// TotalUnread returns the number for the global badge.
func (a *Aggregator) TotalUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, item := range a.items {
		total += item.UnreadCount
	}
	return total
}

// Conversations returns the list sorted by most recent activity.
func (a *Aggregator) Conversations() []*chat.ConversationListItem {
	a.mu.Lock()
	out := make([]*chat.ConversationListItem, 0, len(a.items))
	for _, item := range a.items {
		cp := *item
		out = append(out, &cp)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return lastActivity(out[i]).After(lastActivity(out[j]))
	})
	return out
}

func lastActivity(item *chat.ConversationListItem) time.Time {
	if item.LastMessageAt != nil {
		return *item.LastMessageAt
	}
	return time.Time{}
}

func previewOf(e *chat.NewMessageEvent) *string {
	if e.Content != nil && *e.Content != "" {
		preview := *e.Content
		// Truncate by characters, not bytes; never split a rune.
		if runes := []rune(preview); len(runes) > 100 {
			preview = string(runes[:100])
		}
		return &preview
	}
	media := "[Media]"
	return &media
}

func (a *Aggregator) notify() {
	if a.onChange != nil {
		a.onChange()
	}
}
