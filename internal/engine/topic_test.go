package engine

import (
	"context"
	"strings"
	"testing"

	"deskbridge/internal/domain"
)

func TestInbound_CreatesTopicAndDelivers(t *testing.T) {
	eng, db, ft := newTestEngine(t)
	ctx := context.Background()

	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "hello")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 1 {
		t.Fatalf("created %d topics, want 1", len(ft.created))
	}
	if len(ft.sends) != 1 || !strings.Contains(ft.sends[0].text, "Conversation ID:") {
		t.Fatalf("expected one new-conversation notice, got %+v", ft.sends)
	}
	if len(ft.relays) != 1 {
		t.Fatalf("relayed %d times, want 1", len(ft.relays))
	}
	if ft.relays[0].ChatID != testGroupID || ft.relays[0].TopicID != 1 {
		t.Fatalf("relayed to wrong destination: %+v", ft.relays[0])
	}

	conv, err := db.ConversationByTopic(ctx, 1)
	if err != nil || conv == nil {
		t.Fatalf("topic not bound: %v, %v", conv, err)
	}
	msgs, _ := db.MessagesByConversation(ctx, conv.ID, 10)
	if len(msgs) != 1 || msgs[0].SenderRole != domain.SenderCustomer {
		t.Fatalf("message not persisted: %+v", msgs)
	}
}

func TestInbound_ReusesLiveTopic(t *testing.T) {
	eng, _, ft := newTestEngine(t)
	ctx := context.Background()

	eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "first"))
	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 2, "second")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 1 {
		t.Fatalf("created %d topics, want 1 (topic must be reused)", len(ft.created))
	}
	if len(ft.renamed) != 1 {
		t.Fatalf("probed %d times, want 1", len(ft.renamed))
	}
	if len(ft.relays) != 2 {
		t.Fatalf("relayed %d times, want 2", len(ft.relays))
	}
}

func TestInbound_NotModifiedProbeMeansLive(t *testing.T) {
	eng, _, ft := newTestEngine(t)
	ctx := context.Background()

	eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "first"))
	ft.renameErrs = []error{transportErr(domain.TransportNotModified, "message not modified")}

	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 2, "second")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(ft.created) != 1 {
		t.Fatal("not-modified probe must not trigger recreation")
	}
	if len(ft.relays) != 2 {
		t.Fatalf("relayed %d times, want 2", len(ft.relays))
	}
}

func TestInbound_DeadTopicRecreatedOnce(t *testing.T) {
	eng, db, ft := newTestEngine(t)
	ctx := context.Background()

	eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "first"))

	// The bound topic dies; the probe on the next message detects it.
	ft.renameErrs = []error{transportErr(domain.TransportTopicDead, "message thread not found")}
	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 2, "second")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 2 {
		t.Fatalf("created %d topics, want 2 (one recreation)", len(ft.created))
	}
	conv, _ := db.ConversationByTopic(ctx, 2)
	if conv == nil {
		t.Fatal("conversation not rebound to the new topic")
	}
	last := ft.relays[len(ft.relays)-1]
	if last.TopicID != 2 {
		t.Fatalf("delivered to topic %d, want 2", last.TopicID)
	}
}

func TestInbound_ContentError_FallsBackWithoutRecreation(t *testing.T) {
	eng, db, ft := newTestEngine(t)
	ctx := context.Background()

	eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "first"))
	ft.relayErrs = []error{transportErr(domain.TransportContent, "Request Entity Too Large: file is too big")}

	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 2, "big file")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 1 {
		t.Fatal("content error must not recreate the topic")
	}
	// Fallback: info block on the general surface, payload as a reply to it.
	lastSend := ft.sends[len(ft.sends)-1]
	if lastSend.dest.TopicID != 0 || !strings.Contains(lastSend.text, "Conversation ID:") {
		t.Fatalf("expected fallback header on general surface, got %+v", lastSend)
	}
	lastRelay := ft.relays[len(ft.relays)-1]
	if lastRelay.TopicID != 0 || lastRelay.ReplyTo == 0 {
		t.Fatalf("expected fallback relay replying to the header, got %+v", lastRelay)
	}

	// Topic binding survives for the next message.
	conv, _ := db.ConversationByTopic(ctx, 1)
	if conv == nil {
		t.Fatal("topic binding should be unchanged after a content error")
	}
}

func TestInbound_CreateFails_FallsBack(t *testing.T) {
	eng, db, ft := newTestEngine(t)
	ctx := context.Background()

	ft.createErrs = []error{transportErr(domain.TransportOther, "Too Many Requests")}
	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "hello")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 0 {
		t.Fatal("no topic should exist")
	}
	if len(ft.sends) != 1 || ft.sends[0].dest.TopicID != 0 {
		t.Fatalf("expected fallback header, got %+v", ft.sends)
	}
	if len(ft.relays) != 1 || ft.relays[0].ChatID != testGroupID {
		t.Fatalf("expected fallback relay to group, got %+v", ft.relays)
	}

	open, _ := db.ListOpenConversations(ctx)
	if len(open) != 1 || open[0].TopicID != nil {
		t.Fatalf("conversation should stay open with no topic: %+v", open)
	}
}

func TestInbound_ExhaustedAttempts_FallsBack(t *testing.T) {
	eng, _, ft := newTestEngine(t)
	ctx := context.Background()

	eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "first"))

	// Probe says dead, recreation succeeds, but delivery dies again. The
	// second attempt is the last: no further recreation.
	ft.renameErrs = []error{
		transportErr(domain.TransportTopicDead, "message thread not found"),
		nil,
	}
	ft.relayErrs = []error{transportErr(domain.TransportTopicDead, "message thread not found")}

	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 2, "second")); err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(ft.created) != 2 {
		t.Fatalf("created %d topics, want 2 (recreation is bounded)", len(ft.created))
	}
	lastRelay := ft.relays[len(ft.relays)-1]
	if lastRelay.TopicID != 0 || lastRelay.ReplyTo == 0 {
		t.Fatalf("expected fallback relay, got %+v", lastRelay)
	}
}

func TestInbound_FallbackFailureIsTerminal(t *testing.T) {
	eng, db, ft := newTestEngine(t)
	ctx := context.Background()

	ft.createErrs = []error{transportErr(domain.TransportOther, "gateway timeout")}
	ft.sendErrs = []error{transportErr(domain.TransportOther, "gateway timeout")}

	// Everything failed, but the message row is persisted and the call
	// reports success: there is nothing left to retry.
	if err := eng.RouteInbound(ctx, customerIdentity(10), textPayload(10, 1, "hello")); err != nil {
		t.Fatalf("fallback failure should not surface: %v", err)
	}

	open, _ := db.ListOpenConversations(ctx)
	if len(open) != 1 {
		t.Fatal("conversation should exist")
	}
	msgs, _ := db.MessagesByConversation(ctx, open[0].ID, 10)
	if len(msgs) != 1 {
		t.Fatal("message must be persisted before delivery is attempted")
	}
}
