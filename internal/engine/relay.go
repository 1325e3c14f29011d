package engine

import (
	"context"
	"fmt"
	"time"

	"deskbridge/internal/domain"
	"deskbridge/internal/metrics"
)

// deliverInbound persists the customer's message first, so a transport
// failure never loses the record of what was said, then hands delivery to the
// topic lifecycle manager.
func (e *Engine) deliverInbound(ctx context.Context, conv *domain.Conversation, user *domain.User, p domain.Payload) error {
	extID := p.SourceMessageID
	msg := &domain.Message{
		ConversationID:    &conv.ID,
		SenderRole:        domain.SenderCustomer,
		SenderID:          &user.ID,
		Kind:              p.Kind,
		Content:           p.Content,
		ExternalMessageID: &extID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}
	return e.ensureTopicAndDeliver(ctx, conv, user, p)
}

// deliverOutbound copies the agent's reply straight to the customer's private
// chat. There is no topic on that side and no retry: a failure there (the
// customer blocked the bot, say) is not self-healable and is surfaced to the
// agent. The message row is appended only after delivery succeeded.
func (e *Engine) deliverOutbound(ctx context.Context, conv *domain.Conversation, agent *domain.User, p domain.Payload) error {
	if conv.Customer == nil {
		return domain.ErrNotFound
	}
	dest := domain.Destination{ChatID: conv.Customer.TelegramID}
	if _, err := e.transport.Relay(ctx, p, dest); err != nil {
		kind := domain.TransportKind(err)
		metrics.DeliveryFailures.WithLabelValues(kind.String()).Inc()
		return fmt.Errorf("deliver to customer %d: %w", conv.Customer.TelegramID, err)
	}

	extID := p.SourceMessageID
	msg := &domain.Message{
		ConversationID:    &conv.ID,
		SenderRole:        domain.SenderAgent,
		SenderID:          &agent.ID,
		Kind:              p.Kind,
		Content:           p.Content,
		ExternalMessageID: &extID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist outbound message: %w", err)
	}
	metrics.MessagesRelayed.WithLabelValues("outbound").Inc()
	return nil
}
