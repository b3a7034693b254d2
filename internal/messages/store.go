// internal/messages/store.go
// Per-conversation message store. Reconciles optimistic local sends with
// server-confirmed records and push-delivered records so the final list is
// independent of how REST responses and push events interleave.

package messages

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/api"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

// API is the slice of the REST client the store uses.
type API interface {
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) (*api.MessagesPage, error)
	SendMessage(ctx context.Context, conversationID string, req *api.SendMessageRequest) (*chat.Message, error)
	MarkSeen(ctx context.Context, conversationID, messageID string) error
}

var (
	ErrStoreClosed = errors.New("messages: store is closed")
	ErrSendFailed  = errors.New("messages: send failed")
)

// Option configures a Store.
type Option func(*Store)

// WithPageSize overrides the history page size (default 50).
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithOnChange registers a callback fired after every visible list change.
// It runs outside the store lock; read state through Messages().
func WithOnChange(fn func()) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithOnMarkSeen registers a callback fired after the store's own mark-seen
// call succeeds. The conversation list aggregator zeroes its unread count
// through this hook, without a REST refresh.
func WithOnMarkSeen(fn func(conversationID string)) Option {
	return func(s *Store) { s.onMarkSeen = fn }
}

// Store holds the ordered message list for one open conversation.
type Store struct {
	conversationID string
	localUserID    string
	api            API
	pageSize       int
	onChange       func()
	onMarkSeen     func(string)

	mu           sync.Mutex
	byID         map[string]*chat.Message
	order        []*chat.Message // ascending creation time, pending at tail
	pendingTemps map[string]bool // temp ids awaiting reconciliation
	tempToReal   map[string]string
	heldStatuses map[string]chat.Status // real ids seen before their record
	nextCursor   string
	hasMore      bool
	loading      bool
	loadingOlder bool
	closed       bool
}

// NewStore creates a store for one conversation. localUserID is this
// session's user; it drives own-message semantics (seen upgrades, the seen
// marker, unread zeroing).
func NewStore(client API, conversationID, localUserID string, opts ...Option) *Store {
	s := &Store{
		conversationID: conversationID,
		localUserID:    localUserID,
		api:            client,
		pageSize:       api.DefaultPageSize,
		byID:           make(map[string]*chat.Message),
		pendingTemps:   make(map[string]bool),
		tempToReal:     make(map[string]string),
		heldStatuses:   make(map[string]chat.Status),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConversationID returns the conversation this store tracks.
func (s *Store) ConversationID() string { return s.conversationID }

// Close detaches the store. In-flight REST responses that complete after
// Close are discarded: they belong to a conversation that is no longer the
// active subscriber.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Messages returns a snapshot of the ordered list.
func (s *Store) Messages() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chat.Message, len(s.order))
	for i, m := range s.order {
		cp := *m
		out[i] = &cp
	}
	return out
}

// HasMore reports whether older history remains beyond the loaded pages.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// SeenMarkerID returns the id of the single own message that renders the
// seen label, or "" when none qualifies.
func (s *Store) SeenMarkerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.LatestSeenOwn(s.order, s.localUserID)
}

// LoadInitial fetches the most recent page, replacing the in-memory list,
// then marks the conversation seen up to the newest message. Concurrent
// calls for the same conversation collapse to one in-flight request.
func (s *Store) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	page, err := s.api.ListMessages(ctx, s.conversationID, "", s.pageSize)

	s.mu.Lock()
	s.loading = false
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	// Replace list with the fresh page: server truth also heals any
	// DELIVERED drift from push events missed while the channel was down.
	s.byID = make(map[string]*chat.Message, len(page.Data))
	s.order = s.order[:0]
	for _, m := range page.Data {
		if m.ConversationID != s.conversationID {
			continue // stale or misrouted page
		}
		s.insertLocked(m)
	}
	s.nextCursor = ""
	if page.NextCursor != nil {
		s.nextCursor = *page.NextCursor
	}
	s.hasMore = page.HasMore

	var newest string
	if n := len(s.order); n > 0 {
		newest = s.order[n-1].ID
	}
	s.mu.Unlock()
	s.notify()

	if newest != "" {
		if err := s.api.MarkSeen(ctx, s.conversationID, newest); err != nil {
			// Seen marking is best effort here; the next open retries it.
			log.Printf("messages: mark seen for %s failed: %v", s.conversationID, err)
		} else if s.onMarkSeen != nil {
			s.onMarkSeen(s.conversationID)
		}
	}
	return nil
}

// LoadOlder fetches the next backward page using the cursor from the
// previous one and prepends the results. Calling it twice with the same
// cursor leaves the list unchanged the second time.
func (s *Store) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.loadingOlder || !s.hasMore || s.nextCursor == "" {
		s.mu.Unlock()
		return nil
	}
	s.loadingOlder = true
	cursor := s.nextCursor
	s.mu.Unlock()

	page, err := s.api.ListMessages(ctx, s.conversationID, cursor, s.pageSize)

	s.mu.Lock()
	s.loadingOlder = false
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	changed := false
	for _, m := range page.Data {
		if m.ConversationID != s.conversationID {
			continue
		}
		if _, ok := s.byID[m.ID]; ok {
			continue // boundary overlap or repeated cursor
		}
		s.insertLocked(m)
		changed = true
	}
	s.nextCursor = ""
	if page.NextCursor != nil {
		s.nextCursor = *page.NextCursor
	}
	s.hasMore = page.HasMore
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// SendLocal appends an optimistic record immediately and then performs the
// REST send. On success the temporary record is reconciled with the server
// record in place; on failure it is removed and the error returned. The
// returned id is the temporary id visible until reconciliation.
func (s *Store) SendLocal(ctx context.Context, content string, media []chat.MediaAttachment, replyTo *string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrStoreClosed
	}

	tempID := "temp-" + uuid.NewString()
	var contentPtr *string
	if content != "" {
		contentPtr = &content
	}
	temp := &chat.Message{
		ID:               tempID,
		ConversationID:   s.conversationID,
		SenderID:         s.localUserID,
		Content:          contentPtr,
		Type:             messageTypeFor(content, media),
		Media:            media,
		Status:           chat.StatusSent,
		ReplyToMessageID: replyTo,
		CreatedAt:        time.Now(),
		Pending:          true,
	}
	s.byID[tempID] = temp
	s.order = append(s.order, temp) // pending sorts at the tail
	s.pendingTemps[tempID] = true
	s.mu.Unlock()
	s.notify()

	msg, err := s.api.SendMessage(ctx, s.conversationID, &api.SendMessageRequest{
		Content:          content,
		Media:            media,
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		s.removeTemp(tempID)
		s.notify()
		return tempID, err
	}

	s.reconcile(tempID, msg.ID, msg)
	s.notify()
	return tempID, nil
}

// HandleEvent applies one push event. Events for other conversations are
// ignored; duplicates and out-of-order statuses are absorbed.
func (s *Store) HandleEvent(ev chat.Event) {
	switch e := ev.(type) {
	case *chat.NewMessageEvent:
		if e.ConversationID != s.conversationID {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if cur, ok := s.byID[e.MessageID]; ok {
			// Duplicate delivery; keep the higher status.
			cur.Status = chat.Advance(cur.Status, e.Status)
			s.mu.Unlock()
			s.notify()
			return
		}
		s.insertLocked(e.Message())
		s.mu.Unlock()
		s.notify()

	case *chat.MessageAckEvent:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		owns := s.pendingTemps[e.TempID]
		_, known := s.byID[e.MessageID]
		s.mu.Unlock()
		if !owns && !known {
			return
		}
		s.reconcile(e.TempID, e.MessageID, nil)
		s.notify()

	case *chat.MessageStatusEvent:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		id := e.MessageID
		if real, ok := s.tempToReal[id]; ok {
			id = real
		}
		m, ok := s.byID[id]
		if !ok {
			// The REST send path carries no temp id, so a status for the
			// real id can arrive before the response that introduces it.
			// Hold it until reconciliation instead of dropping it.
			if len(s.pendingTemps) > 0 {
				s.heldStatuses[id] = chat.Advance(s.heldStatuses[id], e.Status)
			}
			s.mu.Unlock()
			return
		}
		next := chat.Advance(m.Status, e.Status)
		changed := next != m.Status
		m.Status = next
		s.mu.Unlock()
		if changed {
			s.notify()
		}

	case *chat.MessageSeenEvent:
		if e.ConversationID != s.conversationID {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		changed := false
		for _, m := range s.order {
			if m.SenderID != s.localUserID || m.Pending {
				continue
			}
			if !m.Status.AtLeast(chat.StatusSeen) {
				m.Status = chat.StatusSeen
				changed = true
			}
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	}
}

// MarkSeen marks the conversation seen up to the newest loaded message.
// Exposed for the focused chat window; LoadInitial already does this once.
func (s *Store) MarkSeen(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	var newest string
	for i := len(s.order) - 1; i >= 0; i-- {
		if !s.order[i].Pending {
			newest = s.order[i].ID
			break
		}
	}
	s.mu.Unlock()

	if newest == "" {
		return nil
	}
	if err := s.api.MarkSeen(ctx, s.conversationID, newest); err != nil {
		return err
	}
	if s.onMarkSeen != nil {
		s.onMarkSeen(s.conversationID)
	}
	return nil
}

// reconcile collapses the temporary record and the server record for one
// logical send into exactly one entry. Either the REST response (full
// record) or a MESSAGE_ACK (ids only) may get here first; the second
// arrival is a no-op.
func (s *Store) reconcile(tempID, realID string, confirmed *chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	temp, hasTemp := s.byID[tempID]
	existing, hasReal := s.byID[realID]

	switch {
	case hasTemp && !hasReal:
		// Replace in place, preserving list position.
		if confirmed != nil {
			status := chat.Advance(temp.Status, confirmed.Status)
			*temp = *confirmed
			temp.Status = status
		} else {
			temp.ID = realID
		}
		temp.Pending = false
		delete(s.byID, tempID)
		s.byID[realID] = temp

	case hasTemp && hasReal:
		// A push copy landed before reconciliation; drop the temp and
		// fold statuses into the surviving record.
		s.removeFromOrderLocked(temp)
		delete(s.byID, tempID)
		existing.Status = chat.Advance(existing.Status, temp.Status)
		if confirmed != nil {
			existing.Status = chat.Advance(existing.Status, confirmed.Status)
		}

	case !hasTemp && hasReal && confirmed != nil:
		// A MESSAGE_ACK already renamed the temp in place; the REST
		// response still owns the server fields. Fold it in, keeping the
		// higher status, and reposition by the server timestamp.
		status := chat.Advance(existing.Status, confirmed.Status)
		s.removeFromOrderLocked(existing)
		*existing = *confirmed
		existing.Status = status
		existing.Pending = false
		s.insertLocked(existing)

	case !hasTemp && !hasReal && confirmed != nil:
		// Temp vanished (e.g. list replaced mid-flight); insert the
		// confirmed record idempotently.
		s.insertLocked(confirmed)
	}

	delete(s.pendingTemps, tempID)
	// Keep the correlation briefly so late MESSAGE_STATUS frames that
	// still reference the temp id resolve to the real record.
	s.tempToReal[tempID] = realID

	// Apply any status that arrived before the record existed.
	if held, ok := s.heldStatuses[realID]; ok {
		if m, live := s.byID[realID]; live {
			m.Status = chat.Advance(m.Status, held)
		}
		delete(s.heldStatuses, realID)
	}
	if len(s.pendingTemps) == 0 && len(s.heldStatuses) > 0 {
		// No send in flight can claim the leftovers.
		s.heldStatuses = make(map[string]chat.Status)
	}
}

func (s *Store) removeTemp(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[tempID]; ok {
		s.removeFromOrderLocked(m)
		delete(s.byID, tempID)
	}
	delete(s.pendingTemps, tempID)
}

// insertLocked places m into the ordered list by server creation time,
// always before any pending tail records. Caller holds the lock.
func (s *Store) insertLocked(m *chat.Message) {
	s.byID[m.ID] = m
	if held, ok := s.heldStatuses[m.ID]; ok {
		m.Status = chat.Advance(m.Status, held)
		delete(s.heldStatuses, m.ID)
	}

	// Confirmed records live in the prefix; find the insertion point
	// among them only.
	confirmed := len(s.order)
	for confirmed > 0 && s.order[confirmed-1].Pending {
		confirmed--
	}
	i := sort.Search(confirmed, func(i int) bool {
		return s.order[i].CreatedAt.After(m.CreatedAt)
	})
	s.order = append(s.order, nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = m
}

func (s *Store) removeFromOrderLocked(m *chat.Message) {
	for i, cur := range s.order {
		if cur == m {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func messageTypeFor(content string, media []chat.MediaAttachment) string {
	if len(media) == 0 {
		return chat.MessageText
	}
	if content != "" {
		return chat.MessageMixed
	}
	for _, m := range media {
		if m.Type == "video" {
			return chat.MessageVideo
		}
	}
	return chat.MessageImage
}
