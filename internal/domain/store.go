package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserStore owns User and AgentProfile rows. Lookups return (nil, nil) when
// the record is absent.
type UserStore interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	CreateAgentProfile(ctx context.Context, p *AgentProfile) error
}

// ConversationStore is the sole writer of Conversation and Message state.
// Read paths preload the customer and locker users. No retry logic lives
// here; callers decide what a failure means.
type ConversationStore interface {
	// OpenConversation returns the customer's open conversation, if any.
	OpenConversation(ctx context.Context, customerID uuid.UUID) (*Conversation, error)

	ConversationByID(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// ConversationByTopic resolves an open conversation by its bound topic.
	ConversationByTopic(ctx context.Context, topicID int64) (*Conversation, error)

	// CreateConversation is idempotent: if the customer already has an open
	// conversation it is returned instead of creating a duplicate.
	CreateConversation(ctx context.Context, customerID uuid.UUID) (*Conversation, error)

	// SetTopicID binds (or, with nil, clears) the external topic.
	SetTopicID(ctx context.Context, convID uuid.UUID, topicID *int64) error

	// SetLock sets (or, with nil, clears) the holding agent.
	SetLock(ctx context.Context, convID uuid.UUID, agentID *uuid.UUID) error

	// CloseConversation transitions status to closed and clears the lock.
	CloseConversation(ctx context.Context, convID uuid.UUID) error

	// AppendMessage inserts the row and bumps the conversation's
	// last_message_at in the same transaction.
	AppendMessage(ctx context.Context, m *Message) error

	// MessagesByConversation returns messages in creation order.
	MessagesByConversation(ctx context.Context, convID uuid.UUID, limit int) ([]Message, error)

	// ListOpenConversations returns open conversations oldest-first, with
	// customer and locker preloaded.
	ListOpenConversations(ctx context.Context) ([]Conversation, error)

	// RecordEvent appends an audit row.
	RecordEvent(ctx context.Context, ev *ConversationEvent) error
}

// Store is the full persistence surface the engine consumes.
type Store interface {
	UserStore
	ConversationStore
	Close() error
}
