// internal/presence/tracker.go
// Typing indicators. Local input is broadcast with a 2-second suppression
// window; remote indicators expire 3 seconds after the last signal unless
// refreshed. All state is ephemeral and conversation-scoped.

package presence

import (
	"log"
	"sync"
	"time"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

const (
	// DefaultSuppressFor is how long local broadcasts are suppressed
	// after one is emitted.
	DefaultSuppressFor = 2 * time.Second

	// DefaultExpiry is how long a remote typist stays active without a
	// fresh signal.
	DefaultExpiry = 3 * time.Second
)

// Broadcaster sends outbound typing frames. *realtime.Manager satisfies it.
type Broadcaster interface {
	SendTyping(conversationID string) error
}

// Typist is one user currently typing in a conversation.
type Typist struct {
	UserID   string
	Username string
}

type typistEntry struct {
	username string
	timer    *time.Timer
}

// Tracker maintains the set of users typing per conversation.
type Tracker struct {
	broadcaster Broadcaster
	suppressFor time.Duration
	expiry      time.Duration
	onChange    func(conversationID string)

	mu       sync.Mutex
	suppress map[string]time.Time              // conversation -> suppressed until
	typists  map[string]map[string]*typistEntry // conversation -> user -> entry
	stopped  bool
}

// NewTracker creates a tracker. Zero durations take the defaults.
func NewTracker(b Broadcaster, suppressFor, expiry time.Duration, onChange func(conversationID string)) *Tracker {
	if suppressFor <= 0 {
		suppressFor = DefaultSuppressFor
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Tracker{
		broadcaster: b,
		suppressFor: suppressFor,
		expiry:      expiry,
		onChange:    onChange,
		suppress:    make(map[string]time.Time),
		typists:     make(map[string]map[string]*typistEntry),
	}
}

// InputChanged reports local keyboard activity in a conversation. The first
// call emits a TYPING broadcast; further calls inside the suppression
// window are absorbed so steady typing produces at most one frame per
// window.
func (t *Tracker) InputChanged(conversationID string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	if until, ok := t.suppress[conversationID]; ok && now.Before(until) {
		t.mu.Unlock()
		return
	}
	t.suppress[conversationID] = now.Add(t.suppressFor)
	t.mu.Unlock()

	if err := t.broadcaster.SendTyping(conversationID); err != nil {
		// A closed channel just means nobody sees the indicator; never
		// an error the caller has to act on.
		log.Printf("presence: typing broadcast failed: %v", err)
	}
}

// HandleEvent applies one push event. TYPING adds or refreshes a typist;
// a NEW_MESSAGE from someone clears their indicator at once, since the
// message supersedes it.
func (t *Tracker) HandleEvent(ev chat.Event) {
	switch e := ev.(type) {
	case *chat.TypingEvent:
		t.addTypist(e.ConversationID, e.UserID, e.Username)
	case *chat.NewMessageEvent:
		t.removeTypist(e.ConversationID, e.SenderID)
	}
}

// Typists returns the users currently typing in a conversation.
func (t *Tracker) Typists(conversationID string) []Typist {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.typists[conversationID]
	out := make([]Typist, 0, len(entries))
	for userID, e := range entries {
		out = append(out, Typist{UserID: userID, Username: e.username})
	}
	return out
}

// Stop cancels every expiry timer. Timers must not leak across
// logout/login cycles.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for _, entries := range t.typists {
		for _, e := range entries {
			e.timer.Stop()
		}
	}
	t.typists = make(map[string]map[string]*typistEntry)
	t.suppress = make(map[string]time.Time)
}

func (t *Tracker) addTypist(conversationID, userID, username string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	entries, ok := t.typists[conversationID]
	if !ok {
		entries = make(map[string]*typistEntry)
		t.typists[conversationID] = entries
	}

	if e, ok := entries[userID]; ok {
		// Fresh signal resets the expiry clock.
		e.username = username
		e.timer.Reset(t.expiry)
		t.mu.Unlock()
		return
	}

	e := &typistEntry{username: username}
	e.timer = time.AfterFunc(t.expiry, func() {
		t.removeTypist(conversationID, userID)
	})
	entries[userID] = e
	t.mu.Unlock()
	t.notify(conversationID)
}

func (t *Tracker) removeTypist(conversationID, userID string) {
	t.mu.Lock()
	entries, ok := t.typists[conversationID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e, ok := entries[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.timer.Stop()
	delete(entries, userID)
	if len(entries) == 0 {
		delete(t.typists, conversationID)
	}
	t.mu.Unlock()
	t.notify(conversationID)
}

func (t *Tracker) notify(conversationID string) {
	if t.onChange != nil {
		t.onChange(conversationID)
	}
}
