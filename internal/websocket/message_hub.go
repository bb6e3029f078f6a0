package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dating-app/internal/database"
	"dating-app/internal/models"
	"dating-app/pkg/logger"
)

const hubIdleTimeout = 5 * time.Minute

// ConversationHub fans events out to the live connections of one two-party
// conversation group. One hub per group name; the Manager owns the mapping.
// The mutex guards clients, pending, and lastActivity, which the Run loop
// and the Manager's cleanup touch from different goroutines.
type ConversationHub struct {
	groupName    string
	mu           sync.Mutex
	clients      map[*MessageClient]bool
	pending      int
	lastActivity time.Time
	Broadcast    chan []byte
	Register     chan *MessageClient
	Unregister   chan *MessageClient
	shutdown     chan bool
	db           database.Database
}

func NewConversationHub(groupName string, db database.Database) *ConversationHub {
	return &ConversationHub{
		groupName:    groupName,
		clients:      make(map[*MessageClient]bool),
		Broadcast:    make(chan []byte),
		Register:     make(chan *MessageClient),
		Unregister:   make(chan *MessageClient),
		shutdown:     make(chan bool, 1),
		lastActivity: time.Now(),
		db:           db,
	}
}

func (h *ConversationHub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			if h.pending > 0 {
				h.pending--
			}
			h.lastActivity = time.Now()
			h.mu.Unlock()
			h.broadcastGroupUpdate()
			logger.Info("User %s joined group %s", client.username, h.groupName)

		case client := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				h.lastActivity = time.Now()
			}
			h.mu.Unlock()
			if ok {
				close(client.send)
				logger.Info("User %s left group %s", client.username, h.groupName)
			}

		case message := <-h.Broadcast:
			h.broadcastToAll(message)
		}
	}
}

func (h *ConversationHub) broadcastToAll(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity = time.Now()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// broadcastGroupUpdate pushes the current durable membership of the group to
// every live member.
func (h *ConversationHub) broadcastGroupUpdate() {
	ctx := context.Background()
	group, err := h.db.GetGroup(ctx, h.groupName)
	if err != nil {
		logger.Error("Error loading group %s for membership update: %v", h.groupName, err)
		return
	}
	if group == nil {
		return
	}

	update := models.WebSocketMessage{
		Type:      models.MessageTypeGroupUpdated,
		Group:     group,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if data, err := json.Marshal(update); err == nil {
		h.broadcastToAll(data)
	} else {
		logger.Error("Error marshaling group update: %v", err)
	}
}

func (h *ConversationHub) GetClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// claim marks an in-flight registration so cleanup cannot shut the hub down
// between a GetHubForGroup lookup and the Register send.
func (h *ConversationHub) claim() {
	h.mu.Lock()
	h.pending++
	h.lastActivity = time.Now()
	h.mu.Unlock()
}

// Release drops a claim taken by GetHubForGroup when the registration is
// abandoned, such as a join that failed to persist.
func (h *ConversationHub) Release() {
	h.mu.Lock()
	if h.pending > 0 {
		h.pending--
	}
	h.mu.Unlock()
}

// idle reports whether the hub has no live clients, no registration in
// flight, and no activity within the cutoff.
func (h *ConversationHub) idle(cutoff time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) == 0 && h.pending == 0 && time.Since(h.lastActivity) >= cutoff
}

func (h *ConversationHub) ShutdownHub() {
	select {
	case h.shutdown <- true:
	default:
	}
}

// Manager hands out one hub per group name. The mutex serializes hub
// creation so concurrent joins by both participants share a single hub, and
// cleanup runs under the same mutex so a handed-out hub cannot be shut down
// before its registration lands.
type Manager struct {
	hubs  map[string]*ConversationHub
	mutex sync.Mutex
	db    database.Database
}

func NewManager(db database.Database) *Manager {
	manager := &Manager{
		hubs: make(map[string]*ConversationHub),
		db:   db,
	}

	go manager.cleanupUnusedHubs()
	return manager
}

// GetHubForGroup returns the hub for a group, creating it if needed. The
// returned hub carries a registration claim; callers either register a
// client on it or call Release.
func (m *Manager) GetHubForGroup(groupName string) *ConversationHub {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	hub, exists := m.hubs[groupName]
	if !exists {
		hub = NewConversationHub(groupName, m.db)
		m.hubs[groupName] = hub
		go hub.Run()
	}
	hub.claim()
	return hub
}

// BroadcastToGroup delivers an event to the live members of the named group,
// whichever hub they joined through. A group with no hub has no live members
// and the event is dropped. The manager mutex is held across the send so the
// hub cannot be shut down underneath it.
func (m *Manager) BroadcastToGroup(groupName string, message []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if hub, ok := m.hubs[groupName]; ok {
		hub.Broadcast <- message
	}
}

func (m *Manager) cleanupUnusedHubs() {
	ticker := time.NewTicker(hubIdleTimeout)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		for groupName, hub := range m.hubs {
			if hub.idle(hubIdleTimeout) {
				hub.ShutdownHub()
				delete(m.hubs, groupName)
				logger.Debug("Cleaned up unused hub for group %s", groupName)
			}
		}
		m.mutex.Unlock()
	}
}
