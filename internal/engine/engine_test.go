package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"deskbridge/internal/domain"
	"deskbridge/internal/store"
)

const testGroupID = int64(-100500)

// fakeTransport records every call and pops scripted errors per method. A nil
// entry (or an exhausted queue) means success.
type fakeTransport struct {
	mu sync.Mutex

	nextTopicID int64

	createErrs []error
	renameErrs []error
	relayErrs  []error
	sendErrs   []error

	created []string
	renamed []int64
	relays  []domain.Destination
	sends   []sentText
}

type sentText struct {
	dest domain.Destination
	text string
}

func (f *fakeTransport) pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (f *fakeTransport) CreateTopic(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop(&f.createErrs); err != nil {
		return 0, err
	}
	f.nextTopicID++
	f.created = append(f.created, name)
	return f.nextTopicID, nil
}

func (f *fakeTransport) RenameTopic(ctx context.Context, topicID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop(&f.renameErrs); err != nil {
		return err
	}
	f.renamed = append(f.renamed, topicID)
	return nil
}

func (f *fakeTransport) Relay(ctx context.Context, p domain.Payload, dest domain.Destination) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop(&f.relayErrs); err != nil {
		return 0, err
	}
	f.relays = append(f.relays, dest)
	return int64(9000 + len(f.relays)), nil
}

func (f *fakeTransport) SendText(ctx context.Context, dest domain.Destination, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop(&f.sendErrs); err != nil {
		return 0, err
	}
	f.sends = append(f.sends, sentText{dest: dest, text: text})
	return int64(8000 + len(f.sends)), nil
}

func transportErr(kind domain.TransportErrorKind, msg string) error {
	return &domain.TransportError{Kind: kind, Op: "test", Err: errors.New(msg)}
}

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore, *fakeTransport) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ft := &fakeTransport{}
	eng := New(Config{
		Store:        db,
		Transport:    ft,
		Logger:       logger,
		AgentGroupID: testGroupID,
	})
	return eng, db, ft
}

func customerIdentity(id int64) domain.Identity {
	return domain.Identity{TelegramID: id, FirstName: "Customer", Username: "cust"}
}

func agentIdentity(id int64) domain.Identity {
	return domain.Identity{TelegramID: id, FirstName: "Agent", Username: "agent"}
}

func textPayload(chatID, msgID int64, text string) domain.Payload {
	return domain.Payload{
		Kind:            domain.KindText,
		Content:         text,
		SourceChatID:    chatID,
		SourceMessageID: msgID,
	}
}
