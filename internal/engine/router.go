package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"deskbridge/internal/domain"
	"deskbridge/internal/metrics"
)

// conversationIDPattern recovers a conversation id embedded in the bot's own
// info blocks (new-conversation and fallback headers).
var conversationIDPattern = regexp.MustCompile(`Conversation ID: ([0-9a-fA-F-]{36})`)

// RouteInbound handles a customer-origin message: resolve the user, get or
// create their open conversation, persist the message, and deliver it into
// the conversation's topic. The whole sequence is serialized per customer so
// duplicate or concurrent events cannot create two conversations or two
// topics.
func (e *Engine) RouteInbound(ctx context.Context, ident domain.Identity, p domain.Payload) error {
	release := e.customerMu.lock(strconv.FormatInt(ident.TelegramID, 10))
	defer release()

	user, err := e.resolveUser(ctx, ident, domain.RoleCustomer)
	if err != nil {
		return err
	}

	conv, err := e.store.OpenConversation(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("lookup open conversation: %w", err)
	}
	if conv == nil {
		conv, err = e.store.CreateConversation(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		e.recordEvent(ctx, &conv.ID, domain.EventCreated, &user.ID, "")
		metrics.OpenConversations.Inc()
		e.logger.Info("conversation created", "conversation", conv.ID, "customer", user.ID)
	}
	conv.Customer = user

	return e.deliverInbound(ctx, conv, user, p)
}

// ReplyContext describes where an agent's reply occurred, for conversation
// resolution.
type ReplyContext struct {
	TopicID        int64  // forum topic the reply was posted in, 0 if none
	RepliedText    string // text or caption of the replied-to message
	RepliedFromBot bool   // whether the replied-to message is the bot's own
}

// ReplyResult reports what RouteAgentReply did.
type ReplyResult struct {
	Conversation *domain.Conversation
	AutoLocked   bool
}

// RouteAgentReply handles an agent-origin reply. The conversation is resolved
// from the topic first, then from a conversation id embedded in the
// replied-to info block; if neither resolves the reply is dropped rather than
// guessed at. An unlocked conversation is auto-locked to the replying agent;
// one locked by someone else rejects the reply.
func (e *Engine) RouteAgentReply(ctx context.Context, ident domain.Identity, p domain.Payload, reply ReplyContext) (*ReplyResult, error) {
	conv, err := e.resolveReplyConversation(ctx, reply)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		if reply.TopicID != 0 {
			e.logger.Warn("agent replied in topic with no open conversation", "topic", reply.TopicID)
		}
		return nil, domain.ErrNoConversation
	}

	release := e.convMu.lock(conv.ID.String())
	defer release()

	agent, err := e.resolveUser(ctx, ident, domain.RoleAgent)
	if err != nil {
		return nil, err
	}

	// Re-read under the lock: status or holder may have changed.
	conv, err = e.store.ConversationByID(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.Open() {
		return nil, domain.ErrConversationClosed
	}
	if conv.LockedByOther(agent.ID) {
		return nil, domain.ErrLockedByOther
	}

	autoLocked := false
	if conv.LockedBy == nil {
		if ok, err := e.lockHeld(ctx, conv.ID, agent); err != nil {
			return nil, err
		} else if ok {
			autoLocked = true
			conv.LockedBy = &agent.ID
		}
	}

	if err := e.deliverOutbound(ctx, conv, agent, p); err != nil {
		return nil, err
	}
	return &ReplyResult{Conversation: conv, AutoLocked: autoLocked}, nil
}

func (e *Engine) resolveReplyConversation(ctx context.Context, reply ReplyContext) (*domain.Conversation, error) {
	if reply.TopicID != 0 {
		conv, err := e.store.ConversationByTopic(ctx, reply.TopicID)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return conv, nil
		}
	}

	// Fallback: the replied-to info block carries the conversation id.
	if reply.RepliedFromBot {
		if m := conversationIDPattern.FindStringSubmatch(reply.RepliedText); m != nil {
			id, err := uuid.Parse(m[1])
			if err != nil {
				return nil, nil
			}
			conv, err := e.store.ConversationByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return conv, nil
		}
	}
	return nil, nil
}

// ParseConversationID parses an explicit conversation id argument from a
// command, rejecting malformed input before any state is touched.
func ParseConversationID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidConversationID
	}
	return id, nil
}
