package database

import (
	"context"

	"dating-app/internal/models"
)

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, id int) (*models.Message, error)
	GetMessageThread(ctx context.Context, userA, userB string) ([]*models.Message, error)
	GetMessagesForUser(ctx context.Context, username, container string) ([]*models.Message, error)
	MarkThreadRead(ctx context.Context, reader, other string) error
	SetMessageDeleted(ctx context.Context, id int, senderDeleted, recipientDeleted bool) error
	DeleteMessage(ctx context.Context, id int) error
}

// GroupRepository is the durable record of conversation groups and their
// live member connections. Membership must be queryable by group name and by
// connection id, because teardown only carries the connection id.
type GroupRepository interface {
	GetGroup(ctx context.Context, name string) (*models.Group, error)
	GetGroupForConnection(ctx context.Context, connectionID string) (*models.Group, error)
	AddConnectionToGroup(ctx context.Context, groupName string, conn *models.Connection) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

type Database interface {
	UserRepository
	MessageRepository
	GroupRepository
	Close() error
}
