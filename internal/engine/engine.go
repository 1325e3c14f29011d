// Package engine is the conversation routing core: it binds users to
// conversations and conversations to forum topics, relays payloads in both
// directions with self-healing topic recovery, and enforces single-writer
// locking so exactly one agent owns a conversation at a time.
package engine

import (
	"log/slog"
	"sync"

	"deskbridge/internal/domain"
	"deskbridge/internal/notice"
)

// Engine wires the store, the transport, and the notice templates together.
// It owns no state of its own beyond in-process serialization locks; the
// store is the source of truth and the external channel is the source of
// truth for topic liveness.
type Engine struct {
	store     domain.Store
	transport domain.Transport
	notices   *notice.Templates
	logger    *slog.Logger
	groupID   int64

	// Conversation creation and topic binding are read-then-write sequences;
	// these serialize them per customer and per conversation so duplicate or
	// concurrent events cannot race them.
	customerMu keyedMutex
	convMu     keyedMutex
}

type Config struct {
	Store        domain.Store
	Transport    domain.Transport
	Notices      *notice.Templates
	Logger       *slog.Logger
	AgentGroupID int64
}

func New(cfg Config) *Engine {
	if cfg.Notices == nil {
		cfg.Notices = notice.Defaults()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:     cfg.Store,
		transport: cfg.Transport,
		notices:   cfg.Notices,
		logger:    cfg.Logger,
		groupID:   cfg.AgentGroupID,
	}
}

// Notices exposes the templates so the command layer renders the same texts.
func (e *Engine) Notices() *notice.Templates { return e.notices }

// keyedMutex hands out one mutex per key, reference-counted so idle entries
// do not accumulate.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*kmEntry
}

type kmEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*kmEntry)
	}
	e := k.entries[key]
	if e == nil {
		e = &kmEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
