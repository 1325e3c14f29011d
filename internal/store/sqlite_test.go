package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"deskbridge/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *SQLiteStore, telegramID int64, role string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:         uuid.New(),
		TelegramID: telegramID,
		FirstName:  "Test",
		Role:       role,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserByTelegramID_Absent(t *testing.T) {
	s := newTestStore(t)
	u, err := s.UserByTelegramID(context.Background(), 42)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for absent user, got %+v", u)
	}
}

func TestUser_CreateLookupUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := newTestUser(t, s, 42, domain.RoleCustomer)

	u, err := s.UserByTelegramID(ctx, 42)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("lookup mismatch: %+v", u)
	}

	u.Username = "renamed"
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	u2, _ := s.UserByTelegramID(ctx, 42)
	if u2.Username != "renamed" {
		t.Fatalf("update not persisted: %q", u2.Username)
	}
}

func TestCreateConversation_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)

	c1, err := s.CreateConversation(ctx, customer.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c2, err := s.CreateConversation(ctx, customer.ID)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("second create returned a different conversation: %s vs %s", c1.ID, c2.ID)
	}
	if c2.Customer == nil || c2.Customer.ID != customer.ID {
		t.Fatal("customer not preloaded")
	}
}

func TestCreateConversation_NewAfterClose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)

	c1, _ := s.CreateConversation(ctx, customer.ID)
	if err := s.CloseConversation(ctx, c1.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	c2, err := s.CreateConversation(ctx, customer.ID)
	if err != nil {
		t.Fatalf("create after close: %v", err)
	}
	if c1.ID == c2.ID {
		t.Fatal("closed conversation was reused")
	}

	open, _ := s.OpenConversation(ctx, customer.ID)
	if open == nil || open.ID != c2.ID {
		t.Fatalf("open conversation should be the new one, got %+v", open)
	}
}

func TestSetTopicID_BindAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)
	c, _ := s.CreateConversation(ctx, customer.ID)

	topic := int64(777)
	if err := s.SetTopicID(ctx, c.ID, &topic); err != nil {
		t.Fatalf("bind: %v", err)
	}
	got, _ := s.ConversationByTopic(ctx, 777)
	if got == nil || got.ID != c.ID {
		t.Fatalf("topic lookup failed: %+v", got)
	}

	if err := s.SetTopicID(ctx, c.ID, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = s.ConversationByTopic(ctx, 777)
	if got != nil {
		t.Fatal("cleared topic should not resolve")
	}
}

func TestConversationByTopic_OpenOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)
	c, _ := s.CreateConversation(ctx, customer.ID)

	topic := int64(5)
	s.SetTopicID(ctx, c.ID, &topic)
	s.CloseConversation(ctx, c.ID)

	got, err := s.ConversationByTopic(ctx, 5)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != nil {
		t.Fatal("closed conversation should not resolve by topic")
	}
}

func TestSetLock_AndCloseClearsLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)
	agent := newTestUser(t, s, 2, domain.RoleAgent)
	c, _ := s.CreateConversation(ctx, customer.ID)

	if err := s.SetLock(ctx, c.ID, &agent.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}
	got, _ := s.ConversationByID(ctx, c.ID)
	if got.LockedBy == nil || *got.LockedBy != agent.ID {
		t.Fatalf("lock not persisted: %+v", got.LockedBy)
	}
	if got.Locker == nil || got.Locker.ID != agent.ID {
		t.Fatal("locker not preloaded")
	}

	if err := s.CloseConversation(ctx, c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ = s.ConversationByID(ctx, c.ID)
	if got.Status != domain.StatusClosed {
		t.Fatalf("status = %q, want closed", got.Status)
	}
	if got.LockedBy != nil {
		t.Fatal("close should clear the lock")
	}
}

func TestAppendMessage_OrderAndLastMessageAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)
	c, _ := s.CreateConversation(ctx, customer.ID)

	base := time.Now().UTC().Truncate(time.Second)
	for i, text := range []string{"first", "second", "third"} {
		msg := &domain.Message{
			ConversationID: &c.ID,
			SenderRole:     domain.SenderCustomer,
			SenderID:       &customer.ID,
			Kind:           domain.KindText,
			Content:        text,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	msgs, err := s.MessagesByConversation(ctx, c.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Content, want)
		}
	}

	got, _ := s.ConversationByID(ctx, c.ID)
	if got.LastMessageAt == nil {
		t.Fatal("last_message_at not set")
	}
	if got.LastMessageAt.Before(base.Add(2 * time.Second)) {
		t.Fatalf("last_message_at = %v, want >= %v", got.LastMessageAt, base.Add(2*time.Second))
	}
}

func TestListOpenConversations_OldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newTestUser(t, s, 1, domain.RoleCustomer)
	b := newTestUser(t, s, 2, domain.RoleCustomer)
	ca, _ := s.CreateConversation(ctx, a.ID)
	time.Sleep(5 * time.Millisecond)
	cb, _ := s.CreateConversation(ctx, b.ID)

	closed := newTestUser(t, s, 3, domain.RoleCustomer)
	cc, _ := s.CreateConversation(ctx, closed.ID)
	s.CloseConversation(ctx, cc.ID)

	list, err := s.ListOpenConversations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d open conversations, want 2", len(list))
	}
	if list[0].ID != ca.ID || list[1].ID != cb.ID {
		t.Fatalf("wrong order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].Customer == nil || list[0].Customer.TelegramID != 1 {
		t.Fatal("customer not preloaded in list")
	}
}

func TestRecordEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := newTestUser(t, s, 1, domain.RoleCustomer)
	c, _ := s.CreateConversation(ctx, customer.ID)

	ev := &domain.ConversationEvent{
		ConversationID: &c.ID,
		Type:           domain.EventCreated,
		ActorID:        &customer.ID,
	}
	if err := s.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("record: %v", err)
	}
}
