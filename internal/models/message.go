package models

import "time"

// Message is one durable chat message between two users. ReadAt is set at
// send time when the recipient is live in the shared group, or later when
// the recipient fetches the thread.
type Message struct {
	ID                int        `json:"id"`
	SenderUsername    string     `json:"sender_username"`
	SenderDisplay     string     `json:"sender_display,omitempty"`
	RecipientUsername string     `json:"recipient_username"`
	RecipientDisplay  string     `json:"recipient_display,omitempty"`
	Content           string     `json:"content"`
	SentAt            time.Time  `json:"sent_at"`
	ReadAt            *time.Time `json:"read_at,omitempty"`
	SenderDeleted     bool       `json:"-"`
	RecipientDeleted  bool       `json:"-"`
}

type CreateMessageRequest struct {
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
}

// Message containers for the inbox-style listing endpoint.
const (
	ContainerInbox  = "inbox"
	ContainerOutbox = "outbox"
	ContainerUnread = "unread"
)
