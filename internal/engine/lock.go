package engine

import (
	"context"

	"github.com/google/uuid"

	"deskbridge/internal/domain"
	"deskbridge/internal/metrics"
)

// Lock claims the conversation for agent. Returns false when the conversation
// is missing or closed, or when another agent already holds it. Re-locking by
// the same agent succeeds.
func (e *Engine) Lock(ctx context.Context, convID uuid.UUID, agent *domain.User) (bool, error) {
	release := e.convMu.lock(convID.String())
	defer release()
	return e.lockHeld(ctx, convID, agent)
}

// lockHeld is Lock without acquiring convMu; callers already hold it.
func (e *Engine) lockHeld(ctx context.Context, convID uuid.UUID, agent *domain.User) (bool, error) {
	conv, err := e.store.ConversationByID(ctx, convID)
	if err != nil {
		return false, err
	}
	if conv == nil || !conv.Open() {
		return false, nil
	}
	if conv.LockedByOther(agent.ID) {
		return false, nil
	}
	if err := e.store.SetLock(ctx, convID, &agent.ID); err != nil {
		return false, err
	}
	e.recordEvent(ctx, &convID, domain.EventLocked, &agent.ID, "")
	e.logger.Info("conversation locked", "conversation", convID, "agent", agent.ID)
	return true, nil
}

// Unlock releases the lock. Only the holding agent may unlock; there is no
// admin override.
func (e *Engine) Unlock(ctx context.Context, convID uuid.UUID, agent *domain.User) (bool, error) {
	release := e.convMu.lock(convID.String())
	defer release()

	conv, err := e.store.ConversationByID(ctx, convID)
	if err != nil {
		return false, err
	}
	if conv == nil || conv.LockedBy == nil || *conv.LockedBy != agent.ID {
		return false, nil
	}
	if err := e.store.SetLock(ctx, convID, nil); err != nil {
		return false, err
	}
	e.recordEvent(ctx, &convID, domain.EventUnlocked, &agent.ID, "")
	e.logger.Info("conversation unlocked", "conversation", convID, "agent", agent.ID)
	return true, nil
}

// Close transitions the conversation to its terminal state and clears any
// lock. Closing an already-closed conversation succeeds.
func (e *Engine) Close(ctx context.Context, convID uuid.UUID, actor *domain.User) (bool, error) {
	release := e.convMu.lock(convID.String())
	defer release()

	conv, err := e.store.ConversationByID(ctx, convID)
	if err != nil {
		return false, err
	}
	if conv == nil {
		return false, nil
	}
	if err := e.store.CloseConversation(ctx, convID); err != nil {
		return false, err
	}
	var actorID *uuid.UUID
	if actor != nil {
		actorID = &actor.ID
	}
	e.recordEvent(ctx, &convID, domain.EventClosed, actorID, "")
	if conv.Open() {
		metrics.OpenConversations.Dec()
	}
	e.logger.Info("conversation closed", "conversation", convID)
	return true, nil
}

// ListOpen returns open conversations oldest-first with customer and locker
// preloaded.
func (e *Engine) ListOpen(ctx context.Context) ([]domain.Conversation, error) {
	return e.store.ListOpenConversations(ctx)
}

// ConversationByTopic resolves an open conversation from the topic a command
// or reply occurred in.
func (e *Engine) ConversationByTopic(ctx context.Context, topicID int64) (*domain.Conversation, error) {
	return e.store.ConversationByTopic(ctx, topicID)
}

// recordEvent appends an audit row; failures are logged, never surfaced.
func (e *Engine) recordEvent(ctx context.Context, convID *uuid.UUID, typ string, actor *uuid.UUID, details string) {
	ev := &domain.ConversationEvent{
		ConversationID: convID,
		Type:           typ,
		ActorID:        actor,
		Details:        details,
	}
	if err := e.store.RecordEvent(ctx, ev); err != nil {
		e.logger.Warn("cannot record conversation event", "type", typ, "err", err)
	}
}
