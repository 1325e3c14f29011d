package domain

import "context"

// Payload is what gets relayed across the customer/agent boundary: a reference
// to the original Telegram message (copy semantics preserve media server-side)
// plus the kind/content extracted for persistence.
type Payload struct {
	Kind            string
	Content         string
	SourceChatID    int64
	SourceMessageID int64
}

// Destination addresses a delivery. TopicID 0 means the chat's general
// surface; ReplyTo 0 means no reply threading.
type Destination struct {
	ChatID  int64
	TopicID int64
	ReplyTo int64
}

// Transport is the external chat service. Calls block on network I/O and
// return errors classified into TransportError kinds where possible.
type Transport interface {
	// CreateTopic opens a new forum topic in the agent group and returns its
	// thread id.
	CreateTopic(ctx context.Context, name string) (int64, error)

	// RenameTopic issues an idempotent rename. A TransportNotModified error
	// means the topic is live and already carries that name.
	RenameTopic(ctx context.Context, topicID int64, name string) error

	// Relay copies the payload's source message to dest, preserving media,
	// and returns the new message id.
	Relay(ctx context.Context, p Payload, dest Destination) (int64, error)

	// SendText sends a plain informational message and returns its id.
	SendText(ctx context.Context, dest Destination, text string) (int64, error)
}
