package models

type MessageType string

const (
	// Conversation channel events.
	MessageTypeThread       MessageType = "message_thread"
	MessageTypeNewMessage   MessageType = "new_message"
	MessageTypeGroupUpdated MessageType = "group_updated"
	MessageTypeError        MessageType = "error"

	// Presence channel events.
	MessageTypeUserOnline      MessageType = "user_online"
	MessageTypeUserOffline     MessageType = "user_offline"
	MessageTypeOnlineUsers     MessageType = "online_users"
	MessageTypeMessageReceived MessageType = "new_message_received"
)

type WebSocketMessage struct {
	Type        MessageType `json:"type"`
	Message     *Message    `json:"message,omitempty"`
	Messages    []*Message  `json:"messages,omitempty"`
	Group       *Group      `json:"group,omitempty"`
	Username    string      `json:"username,omitempty"`
	DisplayName string      `json:"display_name,omitempty"`
	Users       []string    `json:"users,omitempty"`
	Error       string      `json:"error,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
}
