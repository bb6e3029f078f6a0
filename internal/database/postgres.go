package database

import (
	"context"
	"errors"
	"fmt"

	"dating-app/internal/models"
	"dating-app/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, display_name, avatar_url, password_hash, created_at FROM users WHERE username = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, display_name, avatar_url, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, display_name, avatar_url, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`

	err := db.pool.QueryRow(ctx, query, user.Username, user.DisplayName, user.AvatarURL, user.PasswordHash).Scan(
		&user.ID, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Message Repository Implementation
func (db *PostgresDB) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_username, recipient_username, content, sent_at, read_at)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING id, sent_at`

	err := db.pool.QueryRow(ctx, query,
		msg.SenderUsername, msg.RecipientUsername, msg.Content, msg.ReadAt,
	).Scan(&msg.ID, &msg.SentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return msg, nil
}

func (db *PostgresDB) GetMessage(ctx context.Context, id int) (*models.Message, error) {
	query := `
		SELECT id, sender_username, recipient_username, content, sent_at, read_at,
		       sender_deleted, recipient_deleted
		FROM messages WHERE id = $1`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.SenderUsername, &msg.RecipientUsername, &msg.Content,
		&msg.SentAt, &msg.ReadAt, &msg.SenderDeleted, &msg.RecipientDeleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetMessageThread returns the conversation between userA and userB in
// chronological order, excluding messages userA has soft deleted.
func (db *PostgresDB) GetMessageThread(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.sender_username, s.display_name, m.recipient_username, r.display_name,
		       m.content, m.sent_at, m.read_at
		FROM messages m
		JOIN users s ON m.sender_username = s.username
		JOIN users r ON m.recipient_username = r.username
		WHERE (m.sender_username = $1 AND m.recipient_username = $2 AND m.sender_deleted = false)
		   OR (m.sender_username = $2 AND m.recipient_username = $1 AND m.recipient_deleted = false)
		ORDER BY m.sent_at`

	rows, err := db.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (db *PostgresDB) GetMessagesForUser(ctx context.Context, username, container string) ([]*models.Message, error) {
	var where string
	switch container {
	case models.ContainerOutbox:
		where = `m.sender_username = $1 AND m.sender_deleted = false`
	case models.ContainerUnread:
		where = `m.recipient_username = $1 AND m.recipient_deleted = false AND m.read_at IS NULL`
	default:
		where = `m.recipient_username = $1 AND m.recipient_deleted = false`
	}

	query := `
		SELECT m.id, m.sender_username, s.display_name, m.recipient_username, r.display_name,
		       m.content, m.sent_at, m.read_at
		FROM messages m
		JOIN users s ON m.sender_username = s.username
		JOIN users r ON m.recipient_username = r.username
		WHERE ` + where + `
		ORDER BY m.sent_at DESC`

	rows, err := db.pool.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (db *PostgresDB) MarkThreadRead(ctx context.Context, reader, other string) error {
	query := `
		UPDATE messages SET read_at = NOW()
		WHERE recipient_username = $1 AND sender_username = $2 AND read_at IS NULL`

	_, err := db.pool.Exec(ctx, query, reader, other)
	return err
}

func (db *PostgresDB) SetMessageDeleted(ctx context.Context, id int, senderDeleted, recipientDeleted bool) error {
	query := `UPDATE messages SET sender_deleted = $2, recipient_deleted = $3 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, senderDeleted, recipientDeleted)
	return err
}

func (db *PostgresDB) DeleteMessage(ctx context.Context, id int) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func scanMessages(rows pgx.Rows) ([]*models.Message, error) {
	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.SenderUsername, &msg.SenderDisplay, &msg.RecipientUsername,
			&msg.RecipientDisplay, &msg.Content, &msg.SentAt, &msg.ReadAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Group Repository Implementation
func (db *PostgresDB) GetGroup(ctx context.Context, name string) (*models.Group, error) {
	query := `
		SELECT g.name, c.connection_id, c.username
		FROM message_groups g
		LEFT JOIN group_connections c ON c.group_name = g.name
		WHERE g.name = $1`

	rows, err := db.pool.Query(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGroup(rows)
}

func (db *PostgresDB) GetGroupForConnection(ctx context.Context, connectionID string) (*models.Group, error) {
	var groupName string
	err := db.pool.QueryRow(ctx,
		`SELECT group_name FROM group_connections WHERE connection_id = $1`,
		connectionID,
	).Scan(&groupName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return db.GetGroup(ctx, groupName)
}

// AddConnectionToGroup creates the group row if needed and records the
// connection as a member, in one transaction. The upsert keeps concurrent
// joins by both participants from racing into two group records.
func (db *PostgresDB) AddConnectionToGroup(ctx context.Context, groupName string, conn *models.Connection) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO message_groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		groupName,
	); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO group_connections (connection_id, username, group_name) VALUES ($1, $2, $3)`,
		conn.ConnectionID, conn.Username, groupName,
	); err != nil {
		return fmt.Errorf("failed to add connection to group: %w", err)
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) RemoveConnection(ctx context.Context, connectionID string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM group_connections WHERE connection_id = $1`, connectionID)
	return err
}

func scanGroup(rows pgx.Rows) (*models.Group, error) {
	var group *models.Group
	for rows.Next() {
		var (
			name         string
			connectionID *string
			username     *string
		)
		if err := rows.Scan(&name, &connectionID, &username); err != nil {
			return nil, err
		}
		if group == nil {
			group = &models.Group{Name: name}
		}
		if connectionID != nil && username != nil {
			group.Connections = append(group.Connections, &models.Connection{
				ConnectionID: *connectionID,
				Username:     *username,
			})
		}
	}

	return group, rows.Err()
}
