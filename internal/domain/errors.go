package domain

import (
	"errors"
	"fmt"
)

// Caller-visible conditions. The bot layer maps these to short human notices;
// raw transport errors never reach users.
var (
	// ErrNotFound: the referenced conversation or user does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrConversationClosed: the conversation is closed and no longer routes.
	ErrConversationClosed = errors.New("conversation closed")

	// ErrLockedByOther: another agent holds the lock.
	ErrLockedByOther = errors.New("conversation locked by another agent")

	// ErrNoConversation: an agent reply could not be resolved to any
	// conversation. The router drops it rather than guessing.
	ErrNoConversation = errors.New("no conversation resolved for reply")

	// ErrInvalidConversationID: a command carried an unparsable id.
	ErrInvalidConversationID = errors.New("invalid conversation id")
)

// TransportErrorKind classifies failures from the external chat service.
type TransportErrorKind int

const (
	// TransportOther: unclassified; assumed transient on the inbound path.
	TransportOther TransportErrorKind = iota
	// TransportNotModified: idempotent write was a no-op; the target is live.
	TransportNotModified
	// TransportTopicDead: the topic/thread no longer exists.
	TransportTopicDead
	// TransportContent: the payload itself is at fault (size/format). Never
	// fixed by retrying.
	TransportContent
	// TransportForbidden: the peer refuses delivery (bot blocked, kicked).
	TransportForbidden
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportNotModified:
		return "not_modified"
	case TransportTopicDead:
		return "topic_dead"
	case TransportContent:
		return "content"
	case TransportForbidden:
		return "forbidden"
	default:
		return "other"
	}
}

// TransportError wraps a chat-service failure with its classified kind.
type TransportError struct {
	Kind TransportErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Kind)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransportKind extracts the classified kind from err, or TransportOther for
// untyped errors.
func TransportKind(err error) TransportErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return TransportOther
}
