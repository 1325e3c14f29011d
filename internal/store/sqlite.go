// Package store persists users, conversations, and messages in SQLite. It is
// the sole writer of conversation state; the engine requests mutations and
// never touches the database directly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"deskbridge/internal/domain"
)

// SQLiteStore implements domain.Store.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	telegram_user_id  INTEGER NOT NULL UNIQUE,
	username          TEXT NOT NULL DEFAULT '',
	first_name        TEXT NOT NULL DEFAULT '',
	last_name         TEXT NOT NULL DEFAULT '',
	user_type         TEXT NOT NULL CHECK (user_type IN ('customer', 'agent')),
	is_active         INTEGER NOT NULL DEFAULT 1,
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_telegram ON users(telegram_user_id);

CREATE TABLE IF NOT EXISTS agents (
	user_id     TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	role        TEXT NOT NULL DEFAULT 'agent' CHECK (role IN ('admin', 'agent')),
	is_online   INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	customer_id      TEXT REFERENCES users(id),
	status           TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
	locked_by_agent  TEXT REFERENCES users(id),
	topic_id         INTEGER,
	last_message_at  DATETIME,
	created_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_customer ON conversations(customer_id, status);
CREATE INDEX IF NOT EXISTS idx_conversations_topic ON conversations(topic_id);

CREATE TABLE IF NOT EXISTS messages (
	id                   TEXT PRIMARY KEY,
	conversation_id      TEXT REFERENCES conversations(id) ON DELETE CASCADE,
	sender_type          TEXT NOT NULL CHECK (sender_type IN ('customer', 'agent', 'bot')),
	sender_id            TEXT REFERENCES users(id),
	message_type         TEXT NOT NULL DEFAULT 'text',
	content              TEXT NOT NULL DEFAULT '',
	telegram_message_id  INTEGER,
	created_at           DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS conversation_events (
	id               TEXT PRIMARY KEY,
	conversation_id  TEXT,
	event_type       TEXT NOT NULL,
	event_by         TEXT,
	details          TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL
);
`

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- users ---

func (s *SQLiteStore) UserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, telegram_user_id, username, first_name, last_name, user_type, is_active, created_at
		 FROM users WHERE telegram_user_id = ?`, telegramID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_user_id, username, first_name, last_name, user_type, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.TelegramID, u.Username, u.FirstName, u.LastName, u.Role, u.Active, u.CreatedAt)
	return err
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, first_name = ?, last_name = ?, is_active = ? WHERE id = ?`,
		u.Username, u.FirstName, u.LastName, u.Active, u.ID)
	return err
}

func (s *SQLiteStore) CreateAgentProfile(ctx context.Context, p *domain.AgentProfile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO agents (user_id, role, is_online, created_at) VALUES (?, ?, ?, ?)`,
		p.UserID, p.Role, p.Online, p.CreatedAt)
	return err
}

func (s *SQLiteStore) userByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, telegram_user_id, username, first_name, last_name, user_type, is_active, created_at
		 FROM users WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- conversations ---

// convRow mirrors the conversations table with SQL null types; nullable
// references convert to pointers on the domain type.
type convRow struct {
	ID            string         `db:"id"`
	CustomerID    sql.NullString `db:"customer_id"`
	Status        string         `db:"status"`
	LockedBy      sql.NullString `db:"locked_by_agent"`
	TopicID       sql.NullInt64  `db:"topic_id"`
	LastMessageAt sql.NullTime   `db:"last_message_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

const convColumns = `id, customer_id, status, locked_by_agent, topic_id, last_message_at, created_at`

func (r *convRow) toDomain() (*domain.Conversation, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt conversation id %q: %w", r.ID, err)
	}
	c := &domain.Conversation{
		ID:        id,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
	if r.CustomerID.Valid {
		cid, err := uuid.Parse(r.CustomerID.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt customer id %q: %w", r.CustomerID.String, err)
		}
		c.CustomerID = &cid
	}
	if r.LockedBy.Valid {
		aid, err := uuid.Parse(r.LockedBy.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt locker id %q: %w", r.LockedBy.String, err)
		}
		c.LockedBy = &aid
	}
	if r.TopicID.Valid {
		t := r.TopicID.Int64
		c.TopicID = &t
	}
	if r.LastMessageAt.Valid {
		t := r.LastMessageAt.Time
		c.LastMessageAt = &t
	}
	return c, nil
}

// preload attaches the customer and locker users, mirroring the eager loads
// the read contract promises.
func (s *SQLiteStore) preload(ctx context.Context, c *domain.Conversation) error {
	if c.CustomerID != nil {
		u, err := s.userByID(ctx, *c.CustomerID)
		if err != nil {
			return err
		}
		c.Customer = u
	}
	if c.LockedBy != nil {
		u, err := s.userByID(ctx, *c.LockedBy)
		if err != nil {
			return err
		}
		c.Locker = u
	}
	return nil
}

func (s *SQLiteStore) getConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var row convRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if err := s.preload(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *SQLiteStore) OpenConversation(ctx context.Context, customerID uuid.UUID) (*domain.Conversation, error) {
	return s.getConversation(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE customer_id = ? AND status = 'open'`,
		customerID)
}

func (s *SQLiteStore) ConversationByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return s.getConversation(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE id = ?`, id)
}

func (s *SQLiteStore) ConversationByTopic(ctx context.Context, topicID int64) (*domain.Conversation, error) {
	return s.getConversation(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE topic_id = ? AND status = 'open'`, topicID)
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, customerID uuid.UUID) (*domain.Conversation, error) {
	// Get-or-create: the one-open-conversation-per-customer invariant is not a
	// database constraint, so it is enforced here (and serialized per customer
	// by the engine).
	if existing, err := s.OpenConversation(ctx, customerID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, customer_id, status, created_at) VALUES (?, ?, 'open', ?)`,
		id, customerID, now)
	if err != nil {
		return nil, err
	}
	return s.ConversationByID(ctx, id)
}

func (s *SQLiteStore) SetTopicID(ctx context.Context, convID uuid.UUID, topicID *int64) error {
	var val any
	if topicID != nil {
		val = *topicID
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET topic_id = ? WHERE id = ?`, val, convID)
	return err
}

func (s *SQLiteStore) SetLock(ctx context.Context, convID uuid.UUID, agentID *uuid.UUID) error {
	var val any
	if agentID != nil {
		val = *agentID
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET locked_by_agent = ? WHERE id = ?`, val, convID)
	return err
}

func (s *SQLiteStore) CloseConversation(ctx context.Context, convID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = 'closed', locked_by_agent = NULL WHERE id = ?`, convID)
	return err
}

// --- messages ---

type messageRow struct {
	ID                string         `db:"id"`
	ConversationID    sql.NullString `db:"conversation_id"`
	SenderRole        string         `db:"sender_type"`
	SenderID          sql.NullString `db:"sender_id"`
	Kind              string         `db:"message_type"`
	Content           string         `db:"content"`
	ExternalMessageID sql.NullInt64  `db:"telegram_message_id"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r *messageRow) toDomain() (*domain.Message, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt message id %q: %w", r.ID, err)
	}
	m := &domain.Message{
		ID:         id,
		SenderRole: r.SenderRole,
		Kind:       r.Kind,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
	}
	if r.ConversationID.Valid {
		cid, err := uuid.Parse(r.ConversationID.String)
		if err != nil {
			return nil, err
		}
		m.ConversationID = &cid
	}
	if r.SenderID.Valid {
		sid, err := uuid.Parse(r.SenderID.String)
		if err != nil {
			return nil, err
		}
		m.SenderID = &sid
	}
	if r.ExternalMessageID.Valid {
		e := r.ExternalMessageID.Int64
		m.ExternalMessageID = &e
	}
	return m, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	var convID, senderID any
	if m.ConversationID != nil {
		convID = *m.ConversationID
	}
	if m.SenderID != nil {
		senderID = *m.SenderID
	}
	var extID any
	if m.ExternalMessageID != nil {
		extID = *m.ExternalMessageID
	}

	// Insert and bump last_message_at atomically.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_type, sender_id, message_type, content, telegram_message_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, convID, m.SenderRole, senderID, m.Kind, m.Content, extID, m.CreatedAt)
	if err != nil {
		return err
	}
	if m.ConversationID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = ? WHERE id = ?`, now, *m.ConversationID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) MessagesByConversation(ctx context.Context, convID uuid.UUID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, conversation_id, sender_type, sender_id, message_type, content, telegram_message_id, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		convID, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func (s *SQLiteStore) ListOpenConversations(ctx context.Context) ([]domain.Conversation, error) {
	var rows []convRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+convColumns+` FROM conversations WHERE status = 'open' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	convs := make([]domain.Conversation, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		if err := s.preload(ctx, c); err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, nil
}

// --- events ---

func (s *SQLiteStore) RecordEvent(ctx context.Context, ev *domain.ConversationEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	var convID, actorID any
	if ev.ConversationID != nil {
		convID = *ev.ConversationID
	}
	if ev.ActorID != nil {
		actorID = *ev.ActorID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_events (id, conversation_id, event_type, event_by, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, convID, ev.Type, actorID, ev.Details, ev.CreatedAt)
	return err
}
