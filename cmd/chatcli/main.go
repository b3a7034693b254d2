// cmd/chatcli/main.go
// Main entry point for the chat client with debug logging
// This file bootstraps all components and starts the interactive session

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/api"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/chat"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/config"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/conversations"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/messages"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/presence"
	"github.com/huyt39/AOV-Social-Platform-sub000/internal/realtime"
)

func main() {
	// Enable detailed logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting AOV Social Chat Client")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Resolve local user from the session token
	log.Println("\n🔐 Step 4: Resolving session user...")
	localUserID, err := chat.SessionUserID(cfg.SessionToken)
	if err != nil {
		log.Fatal("❌ Invalid session token:", err)
	}
	log.Printf("✅ Logged in as user %s", localUserID)

	// 5. Create REST client
	log.Println("\n🌐 Step 5: Creating API client...")
	client := api.NewClient(cfg.APIBaseURL, cfg.SessionToken, cfg.HTTPTimeout)
	log.Printf("✅ API client ready (%s)", cfg.APIBaseURL)

	// 6. Open the realtime push channel
	log.Println("\n📡 Step 6: Opening push channel...")
	manager := realtime.NewManager(realtime.Config{
		URL:              cfg.PushURL,
		ReconnectDelay:   cfg.ReconnectDelay,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, cfg.SessionToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Open(ctx); err != nil {
		log.Printf("⚠️  Initial connection failed (%v), reconnect loop will retry", err)
	} else {
		log.Println("✅ Push channel open")
	}

	// 7. Initialize conversation list aggregator
	log.Println("\n📋 Step 7: Initializing conversation list...")
	aggregator := conversations.NewAggregator(client, localUserID, nil)

	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := aggregator.Refresh(loadCtx); err != nil {
		log.Printf("⚠️  Failed to load conversation list: %v", err)
	} else {
		log.Printf("✅ Loaded %d conversations (%d unread)",
			len(aggregator.Conversations()), aggregator.TotalUnread())
	}
	loadCancel()

	convService := conversations.NewService(client, localUserID)

	// 8. Initialize typing presence tracker
	log.Println("\n⌨️  Step 8: Initializing typing tracker...")
	tracker := presence.NewTracker(manager, cfg.TypingSuppressFor, cfg.TypingExpiry, nil)
	defer tracker.Stop()
	log.Println("✅ Typing tracker ready")

	// 9. Fan push events out to the trackers
	events, unsubscribe := manager.Subscribe()
	defer unsubscribe()

	session := &session{
		cfg:        cfg,
		client:     client,
		manager:    manager,
		aggregator: aggregator,
		convs:      convService,
		tracker:    tracker,
		localUser:  localUserID,
	}

	go session.dispatchEvents(events)
	log.Println("✅ Event dispatch started")

	// 10. Start local observability endpoint
	if cfg.MetricsAddr != "" {
		log.Println("\n📊 Step 10: Starting metrics endpoint...")
		go startMetricsServer(cfg.MetricsAddr)
	}

	// 11. Run the interactive loop until interrupted
	log.Println("\n========================================")
	log.Printf("💬 Ready. Type /help for commands.")
	log.Println("========================================")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	inputDone := make(chan struct{})
	go func() {
		session.readInput(ctx)
		close(inputDone)
	}()

	select {
	case <-quit:
		log.Println("\n⚠️  Shutdown signal received...")
	case <-inputDone:
		log.Println("\n👋 Input closed, shutting down...")
	}

	// Graceful shutdown
	cancel()
	if store, _ := session.active(); store != nil {
		store.Close()
	}
	manager.Close()
	log.Println("✅ Client exited gracefully")
}

// session holds the wiring for the interactive loop. The active message
// store is swapped when the user opens a different conversation.
type session struct {
	cfg        *config.Config
	client     *api.Client
	manager    *realtime.Manager
	aggregator *conversations.Aggregator
	convs      *conversations.Service
	tracker    *presence.Tracker
	localUser  string

	mu         sync.Mutex
	store      *messages.Store
	activeConv string
}

// active returns the current store and conversation under the lock.
func (s *session) active() (*messages.Store, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store, s.activeConv
}

// dispatchEvents routes push events to every interested component.
func (s *session) dispatchEvents(events <-chan chat.Event) {
	for ev := range events {
		s.aggregator.HandleEvent(ev)
		s.tracker.HandleEvent(ev)
		store, activeConv := s.active()
		if store != nil {
			store.HandleEvent(ev)
		}

		switch e := ev.(type) {
		case *chat.ConnectedEvent:
			log.Printf("📡 Connected as %s", e.UserID)
		case *chat.DisconnectedEvent:
			log.Printf("📡 Disconnected: %v", e.Err)
		case *chat.NewMessageEvent:
			if e.ConversationID != activeConv && e.SenderID != s.localUser {
				content := ""
				if e.Content != nil {
					content = *e.Content
				}
				log.Printf("🔔 %s: %s", e.SenderUsername, content)
			}
		case *chat.TypingEvent:
			if e.ConversationID == activeConv {
				log.Printf("⌨️  %s is typing...", e.Username)
			}
		}
	}
}

// readInput runs the interactive command loop until stdin closes.
func (s *session) readInput(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.runCommand(ctx, line); quit {
				return
			}
			continue
		}
		s.sendMessage(ctx, line)
	}
}

// runCommand handles a /command line and reports whether to quit.
func (s *session) runCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /list                  show conversations and unread counts")
		fmt.Println("  /open <conversation>   open a conversation")
		fmt.Println("  /dm <user>             open or create a direct conversation")
		fmt.Println("  /group <name> <users>  create a group conversation")
		fmt.Println("  /older                 load older messages")
		fmt.Println("  /typing                signal that you are typing")
		fmt.Println("  /who                   show who is typing here")
		fmt.Println("  /status                show connection state")
		fmt.Println("  /quit                  exit")

	case "/list":
		items := s.aggregator.Conversations()
		if len(items) == 0 {
			fmt.Println("No conversations yet.")
		}
		for _, item := range items {
			marker := "  "
			if item.UnreadCount > 0 {
				marker = fmt.Sprintf("%2d", item.UnreadCount)
			}
			preview := ""
			if item.LastMessageContent != nil {
				preview = *item.LastMessageContent
			}
			fmt.Printf("[%s] %s  %s\n", marker, item.ID, preview)
		}

	case "/open":
		if len(args) != 1 {
			fmt.Println("Usage: /open <conversation>")
			return false
		}
		s.openConversation(ctx, args[0])

	case "/dm":
		if len(args) != 1 {
			fmt.Println("Usage: /dm <user>")
			return false
		}
		conv, err := s.convs.OpenDirect(ctx, args[0])
		if err != nil {
			log.Printf("❌ Failed to open direct conversation: %v", err)
			return false
		}
		s.openConversation(ctx, conv.ID)

	case "/group":
		if len(args) < 3 {
			fmt.Println("Usage: /group <name> <user> <user> [user...]")
			return false
		}
		conv, err := s.convs.CreateGroup(ctx, args[0], args[1:])
		if err != nil {
			log.Printf("❌ Failed to create group: %v", err)
			return false
		}
		s.openConversation(ctx, conv.ID)

	case "/older":
		if s.store == nil {
			fmt.Println("Open a conversation first.")
			return false
		}
		if err := s.store.LoadOlder(ctx); err != nil {
			log.Printf("❌ Failed to load older messages: %v", err)
		} else {
			s.printMessages()
		}

	case "/typing":
		if s.activeConv == "" {
			fmt.Println("Open a conversation first.")
			return false
		}
		s.tracker.InputChanged(s.activeConv)

	case "/who":
		typists := s.tracker.Typists(s.activeConv)
		if len(typists) == 0 {
			fmt.Println("Nobody is typing.")
			return false
		}
		names := make([]string, 0, len(typists))
		for _, t := range typists {
			names = append(names, t.Username)
		}
		sort.Strings(names)
		fmt.Printf("Typing: %s\n", strings.Join(names, ", "))

	case "/status":
		fmt.Printf("Connection: %s, unread: %d\n", s.manager.State(), s.aggregator.TotalUnread())

	case "/quit":
		return true

	default:
		fmt.Printf("Unknown command %q, try /help\n", cmd)
	}
	return false
}

// openConversation swaps the active message store to a new conversation.
func (s *session) openConversation(ctx context.Context, conversationID string) {
	if old, _ := s.active(); old != nil {
		old.Close()
	}

	store := messages.NewStore(s.client, conversationID, s.localUser,
		messages.WithPageSize(s.cfg.PageSize),
		messages.WithOnMarkSeen(func(convID string) {
			s.aggregator.MarkSeen(convID)
		}),
	)

	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	defer loadCancel()
	if err := store.LoadInitial(loadCtx); err != nil {
		log.Printf("❌ Failed to load conversation: %v", err)
		store.Close()
		return
	}

	s.mu.Lock()
	s.store = store
	s.activeConv = conversationID
	s.mu.Unlock()
	s.aggregator.SetActive(conversationID)
	s.printMessages()
}

// sendMessage delivers a plain input line to the active conversation.
func (s *session) sendMessage(ctx context.Context, content string) {
	if s.store == nil {
		fmt.Println("Open a conversation first (/open, /dm or /group).")
		return
	}
	sendCtx, sendCancel := context.WithTimeout(ctx, 30*time.Second)
	defer sendCancel()
	if _, err := s.store.SendLocal(sendCtx, content, nil, nil); err != nil {
		log.Printf("❌ Send failed: %v", err)
	}
}

// printMessages renders the active conversation transcript.
func (s *session) printMessages() {
	msgs := s.store.Messages()
	seenMarker := s.store.SeenMarkerID()
	fmt.Printf("--- %s (%d messages) ---\n", s.activeConv, len(msgs))
	for _, m := range msgs {
		status := ""
		if m.SenderID == s.localUser {
			switch {
			case m.Pending:
				status = " ⏳"
			case m.ID == seenMarker:
				status = " 👁"
			case m.Status == chat.StatusDelivered:
				status = " ✓✓"
			case m.Status == chat.StatusSent:
				status = " ✓"
			}
		}
		sender := m.SenderID
		if m.SenderUsername != nil {
			sender = *m.SenderUsername
		}
		content := "[Media]"
		if m.Content != nil && *m.Content != "" {
			content = *m.Content
		}
		fmt.Printf("%s %s: %s%s\n", m.CreatedAt.Format("15:04"), sender, content, status)
	}
}

// startMetricsServer exposes /healthz and /metrics on a local port.
func startMetricsServer(addr string) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","uptime":%q}`, time.Since(startTime).String())
	}).Methods("GET")

	log.Printf("✅ Metrics available on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Printf("⚠️  Metrics server stopped: %v", err)
	}
}

var startTime = time.Now()
