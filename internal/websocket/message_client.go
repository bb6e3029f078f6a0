package websocket

import (
	"context"
	"encoding/json"
	"time"

	"dating-app/internal/models"
	"dating-app/internal/services"
	"dating-app/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// MessageClient is one live connection on the conversation channel. Its
// group membership is persisted by the message service before registration
// and torn down when the read pump exits.
type MessageClient struct {
	hub          *ConversationHub
	manager      *Manager
	presenceHub  *PresenceHub
	conn         *websocket.Conn
	send         chan []byte
	connectionID string
	username     string
	otherUser    string
	service      *services.MessageService
}

func NewMessageClient(hub *ConversationHub, manager *Manager, presenceHub *PresenceHub, conn *websocket.Conn, username, otherUser string, service *services.MessageService) *MessageClient {
	return &MessageClient{
		hub:          hub,
		manager:      manager,
		presenceHub:  presenceHub,
		conn:         conn,
		send:         make(chan []byte, 256),
		connectionID: uuid.NewString(),
		username:     username,
		otherUser:    otherUser,
		service:      service,
	}
}

func (c *MessageClient) ConnectionID() string {
	return c.connectionID
}

func (c *MessageClient) ReadPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		req := &models.CreateMessageRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			c.sendError("invalid message payload")
			continue
		}

		c.handleSend(req)
	}
}

// handleSend runs the send policy and delivers the outcome: broadcast into
// the sender-recipient group on success, alert the recipient's presence
// connections when they are not viewing the conversation, or report the
// failure to this client only. The broadcast is keyed by the message's own
// group, not the group this client joined through, because every send names
// its recipient and the two may differ.
func (c *MessageClient) handleSend(req *models.CreateMessageRequest) {
	ctx := context.Background()

	result, err := c.service.SendMessage(ctx, c.username, req)
	if err != nil {
		logger.Error("Send from %s failed: %v", c.username, err)
		c.sendError(err.Error())
		return
	}

	if len(result.NotifyConnections) > 0 {
		c.presenceHub.NotifyNewMessage(result.NotifyConnections, result.Message)
	}

	event := models.WebSocketMessage{
		Type:      models.MessageTypeNewMessage,
		Message:   result.Message,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if data, err := json.Marshal(event); err == nil {
		c.manager.BroadcastToGroup(result.GroupName, data)
	} else {
		logger.Error("Error marshaling message event: %v", err)
	}
}

// leave removes this connection's durable group membership and, if the
// removal persisted, broadcasts the updated membership to the remaining
// members. A connection that never joined is a no-op.
func (c *MessageClient) leave() {
	ctx := context.Background()

	group, err := c.service.LeaveConversation(ctx, c.connectionID)
	if err != nil {
		logger.Error("Error leaving conversation: %v", err)
	}

	c.hub.Unregister <- c

	if err == nil && group != nil {
		update := models.WebSocketMessage{
			Type:      models.MessageTypeGroupUpdated,
			Group:     group,
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if data, err := json.Marshal(update); err == nil {
			c.hub.Broadcast <- data
		}
	}
}

// SendThread queues the persisted conversation history for this client only.
func (c *MessageClient) SendThread(thread []*models.Message) {
	event := models.WebSocketMessage{
		Type:      models.MessageTypeThread,
		Messages:  thread,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling message thread: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
	}
}

func (c *MessageClient) sendError(reason string) {
	event := models.WebSocketMessage{
		Type:      models.MessageTypeError,
		Error:     reason,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if data, err := json.Marshal(event); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *MessageClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
