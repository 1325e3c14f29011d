package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation.Status values. Transitions are monotone: open -> closed.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Message sender roles.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
	SenderBot      = "bot"
)

// Message kinds. Media kinds carry an opaque file reference as content.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindDocument = "document"
	KindAudio    = "audio"
	KindVoice    = "voice"
	KindVideo    = "video"
	KindSticker  = "sticker"
)

// ConversationEvent types (audit trail, write-only).
const (
	EventCreated        = "created"
	EventLocked         = "locked"
	EventUnlocked       = "unlocked"
	EventClosed         = "closed"
	EventTopicBound     = "topic_bound"
	EventTopicRecreated = "topic_recreated"
)

// Conversation is the routing unit binding one customer to one support thread
// in the agent group. At most one open conversation exists per customer.
type Conversation struct {
	ID            uuid.UUID
	CustomerID    *uuid.UUID
	Status        string
	LockedBy      *uuid.UUID // holding agent, nil when unlocked
	TopicID       *int64     // bound forum topic, nil until created
	LastMessageAt *time.Time
	CreatedAt     time.Time

	// Preloaded by read paths; nil when the reference is absent.
	Customer *User
	Locker   *User
}

// Open reports whether the conversation still routes messages.
func (c *Conversation) Open() bool { return c.Status == StatusOpen }

// LockedByOther reports whether an agent other than agentID holds the lock.
func (c *Conversation) LockedByOther(agentID uuid.UUID) bool {
	return c.LockedBy != nil && *c.LockedBy != agentID
}

// Message is one relayed payload, persisted before delivery is attempted on
// the inbound path. Append-only.
type Message struct {
	ID                uuid.UUID
	ConversationID    *uuid.UUID
	SenderRole        string
	SenderID          *uuid.UUID // nil for bot-originated rows
	Kind              string
	Content           string // text, or an opaque media file reference
	ExternalMessageID *int64 // the Telegram message this row corresponds to
	CreatedAt         time.Time
}

// ConversationEvent is an audit record. The engine writes these best-effort
// and never reads them back.
type ConversationEvent struct {
	ID             uuid.UUID
	ConversationID *uuid.UUID
	Type           string
	ActorID        *uuid.UUID
	Details        string
	CreatedAt      time.Time
}
