package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/storage/models"
	"github.com/docuchat/backend/pkg/logger"
)

// Client is the conversation store. Conversations are append-only message
// logs; individual messages are never updated or deleted.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// CreateConversation persists a fresh conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, title string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UnixMilli()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	logger.Info("Conversation created", zap.String("conversation_id", id))
	return id, nil
}

// AppendMessage inserts a message and bumps the conversation's updated_at in
// one transaction, so neither write commits without the other.
func (c *Client) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendMessageTx(ctx, tx, conversationID, role, content); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	logger.Debug("Message appended",
		zap.String("conversation_id", conversationID),
		zap.String("role", string(role)),
	)
	return nil
}

// AppendTurn persists a user question and the assistant answer as one unit.
// A conversation turn is all-or-nothing: a failure leaves no message behind.
func (c *Client) AppendTurn(ctx context.Context, conversationID, question, answer string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendMessageTx(ctx, tx, conversationID, models.RoleUser, question); err != nil {
		return err
	}
	if err := appendMessageTx(ctx, tx, conversationID, models.RoleAssistant, answer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	logger.Debug("Turn appended", zap.String("conversation_id", conversationID))
	return nil
}

func appendMessageTx(ctx context.Context, tx *sql.Tx, conversationID string, role models.Role, content string) error {
	if !role.Valid() {
		return apperr.Wrapf(apperr.ErrValidation, "unknown message role %q", role)
	}

	now := time.Now().UnixMilli()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		now, conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.Wrapf(apperr.ErrConversationNotFound, "conversation %s", conversationID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, string(role), content, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// History returns the most recent limit messages in chronological order
// (oldest first), the shape prompt construction needs.
func (c *Client) History(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var createdAt int64

		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.Role = models.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return messages, nil
}

func (c *Client) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conversationID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check conversation: %w", err)
	}
	return true, nil
}

// DeleteConversation removes the messages and then the conversation inside
// one transaction. The explicit two-step delete does not depend on the
// store's cascade support.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID,
	); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ?`, conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.Wrapf(apperr.ErrConversationNotFound, "conversation %s", conversationID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	logger.Info("Conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}
