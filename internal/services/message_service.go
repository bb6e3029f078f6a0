package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dating-app/internal/database"
	"dating-app/internal/models"
	"dating-app/internal/presence"
)

var (
	// ErrMissingPeer rejects a conversation join with no target user.
	ErrMissingPeer = errors.New("cannot join group: missing peer user")
	// ErrSelfMessage rejects messages a user addresses to themselves.
	ErrSelfMessage = errors.New("you cannot message yourself")
	// ErrUserNotFound means the sender or recipient username did not resolve.
	ErrUserNotFound = errors.New("cannot send message at this time")
	// ErrMessageNotFound means the message id did not resolve.
	ErrMessageNotFound = errors.New("cannot delete this message")
	// ErrForbidden means the caller is not a party to the message.
	ErrForbidden = errors.New("not allowed to delete this message")
)

// MessageService implements the conversation rules: joining a two-party
// group, the send/read-receipt/notification policy, and leave on disconnect.
// Live delivery is left to the caller; the service reports what to deliver
// and to whom.
type MessageService struct {
	db      database.Database
	tracker *presence.Tracker
}

func NewMessageService(db database.Database, tracker *presence.Tracker) *MessageService {
	return &MessageService{db: db, tracker: tracker}
}

// SendResult is what a successful send produced. NotifyConnections lists the
// recipient's presence connections that should get a new-message alert; it is
// empty when the recipient was live in the group and the message was marked
// read instead.
type SendResult struct {
	Message           *models.Message
	GroupName         string
	NotifyConnections []string
}

// JoinConversation registers the connection as a member of the conversation
// group for (username, otherUser), creating the group record if needed, and
// returns the group and the persisted thread. Membership is durable before
// this returns, so the caller may only report the join afterwards.
func (s *MessageService) JoinConversation(ctx context.Context, username, otherUser, connectionID string) (*models.Group, []*models.Message, error) {
	if username == "" || otherUser == "" {
		return nil, nil, ErrMissingPeer
	}

	groupName := models.GroupName(username, otherUser)
	conn := &models.Connection{ConnectionID: connectionID, Username: username}

	if err := s.db.AddConnectionToGroup(ctx, groupName, conn); err != nil {
		return nil, nil, fmt.Errorf("failed to join group %s: %w", groupName, err)
	}

	group, err := s.db.GetGroup(ctx, groupName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load group %s: %w", groupName, err)
	}

	// Join-time thread delivery does not mark anything read; only an
	// explicit thread fetch does.
	thread, err := s.db.GetMessageThread(ctx, username, otherUser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load message thread: %w", err)
	}

	return group, thread, nil
}

// SendMessage validates and persists one message. If the recipient is a live
// member of the shared group the message is marked read immediately and no
// alert goes out; otherwise the result carries the recipient's other
// connections so the caller can push a new-message alert to them. Nothing may
// be broadcast if an error is returned.
func (s *MessageService) SendMessage(ctx context.Context, senderUsername string, req *models.CreateMessageRequest) (*SendResult, error) {
	if senderUsername == req.RecipientUsername {
		return nil, ErrSelfMessage
	}

	sender, err := s.db.GetUserByUsername(ctx, senderUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender: %w", err)
	}
	recipient, err := s.db.GetUserByUsername(ctx, req.RecipientUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if sender == nil || recipient == nil {
		return nil, ErrUserNotFound
	}

	msg := &models.Message{
		SenderUsername:    sender.Username,
		SenderDisplay:     sender.DisplayName,
		RecipientUsername: recipient.Username,
		RecipientDisplay:  recipient.DisplayName,
		Content:           req.Content,
	}

	groupName := models.GroupName(sender.Username, recipient.Username)
	group, err := s.db.GetGroup(ctx, groupName)
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupName, err)
	}

	result := &SendResult{GroupName: groupName}
	if group.HasMember(recipient.Username) {
		// Recipient has this conversation open, mark read at send time.
		now := time.Now().UTC()
		msg.ReadAt = &now
	} else {
		result.NotifyConnections = s.tracker.ConnectionsForUser(recipient.Username)
	}

	if _, err := s.db.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	result.Message = msg
	return result, nil
}

// LeaveConversation removes the connection from whatever group it belongs to
// and returns the group's remaining state for a membership broadcast. A
// connection that never completed a join has no group; that is a no-op and
// returns nil.
func (s *MessageService) LeaveConversation(ctx context.Context, connectionID string) (*models.Group, error) {
	group, err := s.db.GetGroupForConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group for connection: %w", err)
	}
	if group == nil {
		return nil, nil
	}

	if err := s.db.RemoveConnection(ctx, connectionID); err != nil {
		return nil, fmt.Errorf("failed to remove connection from group %s: %w", group.Name, err)
	}

	return s.db.GetGroup(ctx, group.Name)
}

// GetThread returns the full conversation between the caller and another
// user, first marking the caller's unread messages in it as read. This is
// the explicit read action for messages that arrived while the caller was
// away.
func (s *MessageService) GetThread(ctx context.Context, username, otherUser string) ([]*models.Message, error) {
	if err := s.db.MarkThreadRead(ctx, username, otherUser); err != nil {
		return nil, fmt.Errorf("failed to mark thread read: %w", err)
	}

	return s.db.GetMessageThread(ctx, username, otherUser)
}

func (s *MessageService) GetMessages(ctx context.Context, username, container string) ([]*models.Message, error) {
	return s.db.GetMessagesForUser(ctx, username, container)
}

// DeleteMessage soft deletes the caller's side of a message. The row is only
// removed once both sides have deleted it.
func (s *MessageService) DeleteMessage(ctx context.Context, username string, id int) error {
	msg, err := s.db.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderUsername != username && msg.RecipientUsername != username {
		return ErrForbidden
	}

	if msg.SenderUsername == username {
		msg.SenderDeleted = true
	}
	if msg.RecipientUsername == username {
		msg.RecipientDeleted = true
	}

	if msg.SenderDeleted && msg.RecipientDeleted {
		return s.db.DeleteMessage(ctx, id)
	}

	return s.db.SetMessageDeleted(ctx, id, msg.SenderDeleted, msg.RecipientDeleted)
}
