package engine

import (
	"context"
	"fmt"

	"deskbridge/internal/domain"
	"deskbridge/internal/metrics"
	"deskbridge/internal/notice"
)

// maxTopicAttempts bounds the create/validate/deliver loop. Two attempts
// means a dead topic is recreated exactly once; if the channel itself is
// down, the loop cannot storm it with recreations.
const maxTopicAttempts = 2

// Delivery state machine for one inbound payload.
type topicState int

const (
	stateNoTopic topicState = iota
	stateValidating
	stateDelivering
	stateFallback
	stateDone
)

// ensureTopicAndDeliver guarantees a live forum topic for conv and copies the
// payload into it. Topic ids are cached in the store, but the external
// channel is the source of truth for liveness: a cheap idempotent rename
// probes the topic before delivery, and a dead topic is forgotten and
// recreated once. When no topic can be used the payload lands on the group's
// general surface; a failure there is terminal and only logged.
func (e *Engine) ensureTopicAndDeliver(ctx context.Context, conv *domain.Conversation, user *domain.User, p domain.Payload) error {
	name := topicDisplayName(user)
	attempt := 1

	state := stateValidating
	if conv.TopicID == nil {
		state = stateNoTopic
	}

	for {
		switch state {

		case stateNoTopic:
			topicID, err := e.transport.CreateTopic(ctx, name)
			if err != nil {
				// No topic available this attempt; creation is not retried
				// within the attempt.
				e.logger.Error("cannot create topic", "conversation", conv.ID, "err", err)
				state = stateFallback
				continue
			}
			if err := e.bindTopic(ctx, conv, topicID); err != nil {
				return err
			}
			// Best-effort system notice; its failure must not abort delivery.
			header := notice.Render(e.notices.NewConversation, map[string]string{
				"name": user.FullName(),
				"id":   conv.ID.String(),
			})
			dest := domain.Destination{ChatID: e.groupID, TopicID: topicID}
			if _, err := e.transport.SendText(ctx, dest, header); err != nil {
				e.logger.Warn("cannot send new-conversation notice", "conversation", conv.ID, "err", err)
			}
			state = stateValidating

		case stateValidating:
			err := e.transport.RenameTopic(ctx, *conv.TopicID, name)
			switch {
			case err == nil:
				state = stateDelivering
			case domain.TransportKind(err) == domain.TransportNotModified:
				// Name unchanged: the topic is live.
				state = stateDelivering
			case domain.TransportKind(err) == domain.TransportTopicDead:
				e.logger.Warn("bound topic is dead, recreating",
					"conversation", conv.ID, "topic", *conv.TopicID, "err", err)
				if next, ok := e.retryAfterDeadTopic(ctx, conv, &attempt); ok {
					state = next
					continue
				}
				state = stateFallback
			default:
				// Non-fatal probe failure: deliver anyway.
				e.logger.Warn("topic validation failed with non-critical error",
					"conversation", conv.ID, "topic", *conv.TopicID, "err", err)
				state = stateDelivering
			}

		case stateDelivering:
			dest := domain.Destination{ChatID: e.groupID, TopicID: *conv.TopicID}
			if _, err := e.transport.Relay(ctx, p, dest); err != nil {
				kind := domain.TransportKind(err)
				if kind == domain.TransportContent {
					// The payload itself is at fault; recreating the topic
					// cannot fix it.
					e.logger.Error("content error delivering to topic",
						"conversation", conv.ID, "topic", *conv.TopicID, "err", err)
					metrics.DeliveryFailures.WithLabelValues(kind.String()).Inc()
					state = stateFallback
					continue
				}
				e.logger.Warn("delivery to topic failed, assuming stale topic",
					"conversation", conv.ID, "topic", *conv.TopicID, "err", err)
				if next, ok := e.retryAfterDeadTopic(ctx, conv, &attempt); ok {
					state = next
					continue
				}
				state = stateFallback
				continue
			}
			state = stateDone

		case stateFallback:
			return e.deliverFallback(ctx, conv, user, p)

		case stateDone:
			metrics.MessagesRelayed.WithLabelValues("inbound").Inc()
			return nil
		}
	}
}

// retryAfterDeadTopic forgets the bound topic and reports whether another
// attempt remains. The cleared id forces recreation on the next pass.
func (e *Engine) retryAfterDeadTopic(ctx context.Context, conv *domain.Conversation, attempt *int) (topicState, bool) {
	if *attempt >= maxTopicAttempts {
		return stateFallback, false
	}
	*attempt++
	if err := e.clearTopic(ctx, conv); err != nil {
		e.logger.Error("cannot clear dead topic id", "conversation", conv.ID, "err", err)
		return stateFallback, false
	}
	metrics.TopicsRecreated.Inc()
	e.recordEvent(ctx, &conv.ID, domain.EventTopicRecreated, nil, "")
	return stateNoTopic, true
}

func (e *Engine) bindTopic(ctx context.Context, conv *domain.Conversation, topicID int64) error {
	if err := e.store.SetTopicID(ctx, conv.ID, &topicID); err != nil {
		return fmt.Errorf("persist topic id: %w", err)
	}
	conv.TopicID = &topicID
	metrics.TopicsCreated.Inc()
	e.recordEvent(ctx, &conv.ID, domain.EventTopicBound, nil, fmt.Sprintf("topic=%d", topicID))
	e.logger.Info("topic created", "conversation", conv.ID, "topic", topicID)
	return nil
}

func (e *Engine) clearTopic(ctx context.Context, conv *domain.Conversation) error {
	if err := e.store.SetTopicID(ctx, conv.ID, nil); err != nil {
		return err
	}
	conv.TopicID = nil
	return nil
}

// deliverFallback emits an info block on the group's general surface and
// copies the payload as a reply to it. A failure here is terminal for this
// message: the row is already persisted, so only delivery visibility is lost.
func (e *Engine) deliverFallback(ctx context.Context, conv *domain.Conversation, user *domain.User, p domain.Payload) error {
	e.logger.Info("falling back to general surface", "conversation", conv.ID)

	header := notice.Render(e.notices.FallbackHeader, map[string]string{
		"name": user.FullName(),
		"id":   conv.ID.String(),
		"kind": p.Kind,
	})
	infoID, err := e.transport.SendText(ctx, domain.Destination{ChatID: e.groupID}, header)
	if err == nil {
		_, err = e.transport.Relay(ctx, p, domain.Destination{ChatID: e.groupID, ReplyTo: infoID})
	}
	if err != nil {
		kind := domain.TransportKind(err)
		metrics.DeliveryFailures.WithLabelValues(kind.String()).Inc()
		e.logger.Error("fallback delivery failed, giving up",
			"conversation", conv.ID, "kind", kind.String(), "err", err)
		return nil
	}
	metrics.FallbackDeliveries.Inc()
	metrics.MessagesRelayed.WithLabelValues("inbound").Inc()
	return nil
}

// topicDisplayName names the topic after the user; the rename probe also
// keeps it in sync when the profile changes.
func topicDisplayName(u *domain.User) string {
	return u.FullName()
}
