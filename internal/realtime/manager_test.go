// internal/realtime/manager_test.go

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

var upgrader = websocket.Upgrader{}

// pushServer is a minimal stand-in for the platform's websocket gateway. It
// records connection tokens and pushes raw frames to the latest connection.
type pushServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	tokens chan string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{
		conns:  make(chan *websocket.Conn, 8),
		tokens: make(chan string, 8),
	}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","user_id":"u-1"}`))
		ps.conns <- conn
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http")
}

func (ps *pushServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ps.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func waitEvent(t *testing.T, events <-chan chat.Event) chat.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func TestOpenDeliversConnectedEvent(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Open(context.Background()))
	ps.accept(t)

	assert.Equal(t, "tok-1", <-ps.tokens)
	assert.Equal(t, StateOpen, m.State())

	ev := waitEvent(t, events)
	connected, ok := ev.(*chat.ConnectedEvent)
	require.True(t, ok)
	assert.Equal(t, "u-1", connected.UserID)
}

func TestOpenTwiceIsNoOp(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	require.NoError(t, m.Open(context.Background()))
	ps.accept(t)
	require.NoError(t, m.Open(context.Background()))

	// A second Open must not dial again.
	select {
	case <-ps.conns:
		t.Fatal("second Open opened a second connection")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPushedFramesReachSubscribers(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Open(context.Background()))
	conn := ps.accept(t)
	waitEvent(t, events) // connected

	frame := `{"type":"TYPING","conversationId":"c-1","userId":"u-2","username":"rival"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	ev := waitEvent(t, events)
	typing, ok := ev.(*chat.TypingEvent)
	require.True(t, ok)
	assert.Equal(t, "c-1", typing.ConversationID)
}

func TestMalformedFrameDoesNotKillStream(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Open(context.Background()))
	conn := ps.accept(t)
	waitEvent(t, events) // connected

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOBODY_KNOWS"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"MESSAGE_STATUS","messageId":"m-1","status":"DELIVERED"}`)))

	ev := waitEvent(t, events)
	status, ok := ev.(*chat.MessageStatusEvent)
	require.True(t, ok)
	assert.Equal(t, chat.StatusDelivered, status.Status)
}

func TestReconnectKeepsSubscription(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url(), ReconnectDelay: 50 * time.Millisecond}, "tok-1")
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Open(context.Background()))
	first := ps.accept(t)
	waitEvent(t, events) // connected

	// Kill the connection server-side; the manager must dial again on its
	// own and the existing subscription keeps delivering.
	first.Close()

	ev := waitEvent(t, events)
	_, ok := ev.(*chat.DisconnectedEvent)
	require.True(t, ok, "expected disconnect, got %T", ev)

	second := ps.accept(t)
	ev = waitEvent(t, events)
	_, ok = ev.(*chat.ConnectedEvent)
	require.True(t, ok, "expected connected after reconnect, got %T", ev)

	frame := `{"type":"MESSAGE_SEEN","conversationId":"c-1","userId":"u-2","username":"rival","lastSeenMessageId":"m-9"}`
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(frame)))

	ev = waitEvent(t, events)
	seen, ok := ev.(*chat.MessageSeenEvent)
	require.True(t, ok)
	assert.Equal(t, "m-9", seen.LastSeenMessageID)
}

func TestSendTyping(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	require.NoError(t, m.Open(context.Background()))
	conn := ps.accept(t)

	require.NoError(t, m.SendTyping("c-1"))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame chat.TypingFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, chat.EventTyping, frame.Type)
	assert.Equal(t, "c-1", frame.ConversationID)
}

func TestSendTypingWhileDisconnected(t *testing.T) {
	m := NewManager(Config{URL: "ws://127.0.0.1:1/ws"}, "tok-1")
	defer m.Close()

	assert.ErrorIs(t, m.SendTyping("c-1"), ErrNotConnected)
}

func TestCloseReleasesSubscribers(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Open(context.Background()))
	ps.accept(t)

	m.Close()
	m.Close() // idempotent

	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Open(context.Background()), ErrManagerClosed)

	// The subscriber channel drains and closes.
	for {
		if _, ok := <-events; !ok {
			return
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ps := newPushServer(t)
	m := NewManager(Config{URL: ps.url()}, "tok-1")
	defer m.Close()

	events, cancel := m.Subscribe()
	require.NoError(t, m.Open(context.Background()))
	ps.accept(t)
	waitEvent(t, events) // connected

	cancel()
	if _, ok := <-events; ok {
		// One buffered event may still be in flight; the channel must be
		// closed right after.
		_, ok = <-events
		assert.False(t, ok)
	}
}

func TestOpenDialFailure(t *testing.T) {
	m := NewManager(Config{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: time.Second}, "tok-1")
	defer m.Close()

	err := m.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
}
