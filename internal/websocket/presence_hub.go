package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"dating-app/internal/models"
	"dating-app/internal/presence"
	"dating-app/pkg/logger"
)

// PresenceHub is the single global registry of presence-channel clients. It
// owns live delivery; the online/offline bookkeeping itself lives in the
// Tracker. Broadcasts always exclude the acting client, which already knows
// its own state.
type PresenceHub struct {
	mutex   sync.RWMutex
	clients map[string]*PresenceClient
	tracker *presence.Tracker
}

func NewPresenceHub(tracker *presence.Tracker) *PresenceHub {
	return &PresenceHub{
		clients: make(map[string]*PresenceClient),
		tracker: tracker,
	}
}

// Register adds the client and announces the user to everyone else: an
// online event when this is the user's first connection, then the refreshed
// online-user list.
func (h *PresenceHub) Register(client *PresenceClient) {
	h.mutex.Lock()
	h.clients[client.connectionID] = client
	h.mutex.Unlock()

	if h.tracker.Connect(client.username, client.connectionID) {
		h.broadcastToOthers(client, models.WebSocketMessage{
			Type:     models.MessageTypeUserOnline,
			Username: client.username,
		})
	}
	h.broadcastOnlineUsers(client)

	logger.Info("User %s connected to presence (%s)", client.username, client.connectionID)
}

// Unregister removes the client and announces the change the same way: an
// offline event once the user's last connection is gone, then the list.
func (h *PresenceHub) Unregister(client *PresenceClient) {
	h.mutex.Lock()
	if _, ok := h.clients[client.connectionID]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.connectionID)
	h.mutex.Unlock()
	close(client.send)

	if h.tracker.Disconnect(client.username, client.connectionID) {
		h.broadcastToOthers(client, models.WebSocketMessage{
			Type:     models.MessageTypeUserOffline,
			Username: client.username,
		})
	}
	h.broadcastOnlineUsers(client)

	logger.Info("User %s disconnected from presence (%s)", client.username, client.connectionID)
}

// NotifyNewMessage pushes a lightweight alert to a set of presence
// connections. It carries who sent the message, not the message body.
func (h *PresenceHub) NotifyNewMessage(connectionIDs []string, msg *models.Message) {
	event := models.WebSocketMessage{
		Type:        models.MessageTypeMessageReceived,
		Username:    msg.SenderUsername,
		DisplayName: msg.SenderDisplay,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling new message alert: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, id := range connectionIDs {
		if client, ok := h.clients[id]; ok {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}

func (h *PresenceHub) broadcastOnlineUsers(except *PresenceClient) {
	h.broadcastToOthers(except, models.WebSocketMessage{
		Type:  models.MessageTypeOnlineUsers,
		Users: h.tracker.OnlineUsers(),
	})
}

func (h *PresenceHub) broadcastToOthers(except *PresenceClient, event models.WebSocketMessage) {
	event.Timestamp = time.Now().Format(time.RFC3339)

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling presence event: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for id, client := range h.clients {
		if id == except.connectionID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
