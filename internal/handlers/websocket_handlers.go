package handlers

import (
	"net/http"

	"dating-app/internal/auth"
	"dating-app/internal/models"
	"dating-app/internal/services"
	ws "dating-app/internal/websocket"
	"dating-app/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService    *auth.Service
	messageService *services.MessageService
	hubManager     *ws.Manager
	presenceHub    *ws.PresenceHub
	upgrader       websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, messageService *services.MessageService, hubManager *ws.Manager, presenceHub *ws.PresenceHub, allowedOrigin string) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService:    authService,
		messageService: messageService,
		hubManager:     hubManager,
		presenceHub:    presenceHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// HandleMessages is the conversation channel. The client supplies the peer
// username in the "user" query parameter; a missing identity or peer refuses
// the connection before the upgrade.
func (h *WebSocketHandlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	otherUser := r.URL.Query().Get("user")
	if otherUser == "" {
		http.Error(w, "missing peer user", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	groupName := models.GroupName(user.Username, otherUser)
	hub := h.hubManager.GetHubForGroup(groupName)
	client := ws.NewMessageClient(hub, h.hubManager, h.presenceHub, conn, user.Username, otherUser, h.messageService)

	// Membership must be durable before the client learns it has joined.
	group, thread, err := h.messageService.JoinConversation(r.Context(), user.Username, otherUser, client.ConnectionID())
	if err != nil {
		logger.Error("Error joining conversation %s: %v", groupName, err)
		hub.Release()
		conn.Close()
		return
	}

	hub.Register <- client

	// Thread snapshot goes to the joining client only; the Register above
	// already broadcast the updated membership to the whole group.
	client.SendThread(thread)

	logger.Debug("Group %s now has %d durable connections", groupName, len(group.Connections))

	go client.WritePump()
	go client.ReadPump()
}

// HandlePresence is the global presence channel. No client parameters; the
// authenticated identity is all it needs.
func (h *WebSocketHandlers) HandlePresence(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewPresenceClient(h.presenceHub, conn, user.Username)
	h.presenceHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandlers) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil, false
	}

	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}

	return user, true
}
