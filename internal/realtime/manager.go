// internal/realtime/manager.go
// Connection Manager for the push channel. Owns the single websocket
// connection for a session, decodes inbound frames into typed events, fans
// them out to subscribers, and reconnects on its own after unexpected
// closures. Subscriptions survive reconnects.

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Buffered events per subscriber before frames are dropped
	subscriberBuffer = 64

	// DefaultReconnectDelay is the fixed wait before a reconnect attempt.
	DefaultReconnectDelay = 3 * time.Second
)

var (
	ErrNotConnected  = errors.New("realtime: push channel is not open")
	ErrAlreadyOpen   = errors.New("realtime: push channel already open")
	ErrManagerClosed = errors.New("realtime: manager is closed")
)

// State is the lifecycle of the push connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Config holds the push-channel settings.
type Config struct {
	// URL of the websocket endpoint, e.g. "wss://api.example.com/api/v1/ws".
	// The session token is appended as the token query parameter.
	URL string

	// ReconnectDelay is the fixed wait between reconnect attempts.
	// Reconnection is unconditional and unlimited; zero means
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds the websocket dial. Zero means 10s.
	HandshakeTimeout time.Duration
}

// Manager owns one push connection per authenticated session. It is created
// per login and torn down completely on logout; nothing about it is global.
type Manager struct {
	cfg    Config
	token  string
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	subs   map[int]chan chat.Event
	nextID int
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a manager for one session token. Call Open to connect.
func NewManager(cfg Config, sessionToken string) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		token:  sessionToken,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		state:  StateIdle,
		subs:   make(map[int]chan chat.Event),
		done:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers for the typed event stream. The returned channel
// keeps delivering across reconnects; cancel removes the subscription.
// Events are dropped (and counted) for subscribers that fall behind.
func (m *Manager) Subscribe() (<-chan chat.Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan chat.Event, subscriberBuffer)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Open establishes the push connection and starts the reconnect loop. A
// second Open while the connection is live is a no-op.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.state == StateOpen || m.state == StateConnecting || m.state == StateReconnecting {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(StateIdle)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(conn)
	return nil
}

// Close tears the connection down idempotently and releases every
// subscriber. The manager cannot be reopened; a new login creates a new one.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	m.wg.Wait()

	m.mu.Lock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()
}

// SendTyping broadcasts a typing signal for the conversation. Typing is the
// only client-originated frame besides pings; sends go through REST.
func (m *Manager) SendTyping(conversationID string) error {
	return m.writeJSON(chat.NewTypingFrame(conversationID))
}

func (m *Manager) writeJSON(v interface{}) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", m.token)
	u.RawQuery = q.Encode()

	conn, _, err := m.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// run owns the connection until Close. After every drop it waits the fixed
// reconnect delay and dials again, forever. There is deliberately no
// backoff growth: the server-side fan-out treats sessions as cheap and the
// delay is configurable for deployments that need to be gentler.
func (m *Manager) run(conn *websocket.Conn) {
	defer m.wg.Done()

	for {
		stopPing := m.startPing(conn)
		err := m.readLoop(conn)
		stopPing()
		conn.Close()

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		alreadyClosed := m.closed
		if !alreadyClosed {
			m.setStateLocked(StateReconnecting)
		}
		m.mu.Unlock()

		if alreadyClosed {
			return
		}

		log.Printf("realtime: push channel lost: %v", err)
		m.broadcast(&chat.DisconnectedEvent{Err: err})

		// Reconnect loop: fixed delay, unlimited attempts.
		for {
			m.mu.Lock()
			m.setStateLocked(StateReconnecting)
			m.mu.Unlock()

			select {
			case <-m.done:
				return
			case <-time.After(m.cfg.ReconnectDelay):
			}

			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			if m.state == StateOpen {
				// Someone else already reconnected; never hold two
				// connections for one session.
				m.mu.Unlock()
				return
			}
			m.setStateLocked(StateConnecting)
			m.mu.Unlock()

			reconnectsTotal.Inc()
			next, err := m.dial(context.Background())
			if err != nil {
				log.Printf("realtime: reconnect failed: %v", err)
				continue
			}

			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				next.Close()
				return
			}
			m.conn = next
			m.setStateLocked(StateOpen)
			m.mu.Unlock()

			conn = next
			break
		}
	}
}

// readLoop pumps frames from the connection until it fails. Frames that do
// not decode are dropped and logged; they must never crash the stream.
func (m *Manager) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return err
		}

		ev, err := chat.DecodeEvent(data)
		if err != nil {
			framesDroppedTotal.Inc()
			log.Printf("realtime: dropping frame: %v", err)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		eventsTotal.WithLabelValues(string(ev.EventType())).Inc()

		// Pongs only refresh the deadline; subscribers never see them.
		if _, ok := ev.(*chat.PongEvent); ok {
			continue
		}
		m.broadcast(ev)
	}
}

// startPing keeps the connection alive with protocol pings plus the
// application-level ping frame the platform's gateway answers with pong.
func (m *Manager) startPing(conn *websocket.Conn) func() {
	ticker := time.NewTicker(pingPeriod)
	stop := make(chan struct{})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				data, _ := json.Marshal(chat.NewPingFrame())
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-stop:
				return
			case <-m.done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stop)
	}
}

func (m *Manager) broadcast(ev chat.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			subscriberDropsTotal.Inc()
			log.Printf("realtime: subscriber %d is behind, dropping %s", id, ev.EventType())
		}
	}
}

// setStateLocked updates the state and the gauge. Caller holds mu.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	connectionState.Set(float64(s))
}
