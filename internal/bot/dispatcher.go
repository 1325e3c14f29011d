// Package bot consumes the Telegram update feed and dispatches each message:
// private chats feed the inbound routing path, the agent group feeds replies
// and lifecycle commands. All user-visible responses come from the notice
// templates, never from raw errors.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"deskbridge/internal/domain"
	"deskbridge/internal/engine"
	"deskbridge/internal/notice"
	"deskbridge/internal/transport"

	"github.com/google/uuid"
)

// Dispatcher fans updates out to handlers, one goroutine per update. Ordering
// within a customer or a conversation is enforced by the engine's keyed
// locks, not here.
type Dispatcher struct {
	tg      *transport.Telegram
	engine  *engine.Engine
	notices *notice.Templates
	groupID int64
	logger  *slog.Logger
}

type Config struct {
	Transport *transport.Telegram
	Engine    *engine.Engine
	Logger    *slog.Logger
}

func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		tg:      cfg.Transport,
		engine:  cfg.Engine,
		notices: cfg.Engine.Notices(),
		groupID: cfg.Transport.GroupID(),
		logger:  cfg.Logger,
	}
}

// Run consumes updates until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for u := range d.tg.Updates(ctx) {
		m := u.Message
		if m == nil || m.From == nil || m.From.IsBot {
			continue
		}
		wg.Add(1)
		go func(m *transport.IncomingMessage) {
			defer wg.Done()
			d.handleMessage(ctx, m)
		}(m)
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) handleMessage(ctx context.Context, m *transport.IncomingMessage) {
	switch {
	case m.Chat.Type == "private":
		d.handlePrivate(ctx, m)
	case m.Chat.ID == d.groupID:
		d.handleGroup(ctx, m)
	default:
		d.logger.Debug("ignoring message from unrelated chat",
			"chat", m.Chat.ID, "type", m.Chat.Type)
	}
}

func (d *Dispatcher) handlePrivate(ctx context.Context, m *transport.IncomingMessage) {
	if m.IsCommand() {
		if name, _ := m.Command(); name == "start" {
			d.reply(ctx, m, d.notices.Welcome)
			return
		}
		// Unknown commands fall through and are relayed like any text.
	}
	if err := d.engine.RouteInbound(ctx, identityOf(m.From), payloadOf(m)); err != nil {
		d.logger.Error("inbound routing failed",
			"customer", m.From.ID, "message", m.MessageID, "err", err)
	}
}

func (d *Dispatcher) handleGroup(ctx context.Context, m *transport.IncomingMessage) {
	if m.IsCommand() {
		d.handleCommand(ctx, m)
		return
	}
	d.handleAgentReply(ctx, m)
}

func (d *Dispatcher) handleAgentReply(ctx context.Context, m *transport.IncomingMessage) {
	reply := engine.ReplyContext{TopicID: m.ThreadID}
	if r := m.ReplyTo; r != nil {
		reply.RepliedFromBot = r.From != nil && r.From.IsBot
		reply.RepliedText = r.Text
		if reply.RepliedText == "" {
			reply.RepliedText = r.Caption
		}
	}

	res, err := d.engine.RouteAgentReply(ctx, identityOf(m.From), payloadOf(m), reply)
	switch {
	case err == nil:
		if res.AutoLocked {
			d.reply(ctx, m, d.notices.AutoLocked)
		}
	case errors.Is(err, domain.ErrNoConversation):
		// Group chatter outside any conversation. Dropped.
		d.logger.Debug("unroutable group message dropped",
			"topic", m.ThreadID, "message", m.MessageID)
	case errors.Is(err, domain.ErrConversationClosed):
		d.reply(ctx, m, d.notices.ConversationClosed)
	case errors.Is(err, domain.ErrLockedByOther):
		d.reply(ctx, m, d.notices.LockedByOther)
	default:
		d.logger.Error("outbound delivery failed",
			"agent", m.From.ID, "topic", m.ThreadID, "err", err)
		d.reply(ctx, m, d.notices.DeliveryFailed)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, m *transport.IncomingMessage) {
	name, args := m.Command()
	switch name {
	case "list":
		d.cmdList(ctx, m)
	case "lock":
		d.cmdLock(ctx, m, args)
	case "unlock":
		d.cmdUnlock(ctx, m, args)
	case "close":
		d.cmdClose(ctx, m, args)
	default:
		d.logger.Debug("unknown command ignored", "command", name)
	}
}

func (d *Dispatcher) cmdList(ctx context.Context, m *transport.IncomingMessage) {
	convs, err := d.engine.ListOpen(ctx)
	if err != nil {
		d.logger.Error("cannot list conversations", "err", err)
		return
	}
	if len(convs) == 0 {
		d.reply(ctx, m, d.notices.NoOpenConversations)
		return
	}

	var b strings.Builder
	b.WriteString(d.notices.ListHeader)
	for _, c := range convs {
		name := "?"
		if c.Customer != nil {
			name = c.Customer.FullName()
		}
		fmt.Fprintf(&b, "\n• %s\n  ID: <code>%s</code>", name, c.ID)
		if c.Locker != nil {
			fmt.Fprintf(&b, "\n  🔒 %s", c.Locker.DisplayName())
		}
	}
	d.reply(ctx, m, b.String())
}

func (d *Dispatcher) cmdLock(ctx context.Context, m *transport.IncomingMessage, args string) {
	d.lifecycleCommand(ctx, m, "lock", args, d.engine.Lock, d.notices.Locked, d.notices.LockFailed)
}

func (d *Dispatcher) cmdUnlock(ctx context.Context, m *transport.IncomingMessage, args string) {
	d.lifecycleCommand(ctx, m, "unlock", args, d.engine.Unlock, d.notices.Unlocked, d.notices.UnlockFailed)
}

func (d *Dispatcher) cmdClose(ctx context.Context, m *transport.IncomingMessage, args string) {
	d.lifecycleCommand(ctx, m, "close", args, d.engine.Close, d.notices.Closed, d.notices.CloseFailed)
}

// lifecycleCommand runs lock/unlock/close: resolve the target conversation
// from the argument or the surrounding topic, resolve the issuing agent, run
// the op, notify the outcome.
func (d *Dispatcher) lifecycleCommand(
	ctx context.Context,
	m *transport.IncomingMessage,
	command, args string,
	op func(context.Context, uuid.UUID, *domain.User) (bool, error),
	okText, failText string,
) {
	convID, ok := d.targetConversation(ctx, m, command, args)
	if !ok {
		return
	}
	agent, err := d.engine.ResolveAgent(ctx, identityOf(m.From))
	if err != nil {
		d.logger.Error("cannot resolve agent", "telegram_id", m.From.ID, "err", err)
		return
	}
	done, err := op(ctx, convID, agent)
	if err != nil {
		d.logger.Error("command failed",
			"command", command, "conversation", convID, "err", err)
		d.reply(ctx, m, failText)
		return
	}
	if done {
		d.reply(ctx, m, okText)
	} else {
		d.reply(ctx, m, failText)
	}
}

// targetConversation resolves which conversation a command addresses: an
// explicit id argument wins, otherwise the topic the command was issued in.
func (d *Dispatcher) targetConversation(ctx context.Context, m *transport.IncomingMessage, command, args string) (uuid.UUID, bool) {
	if args != "" {
		id, err := engine.ParseConversationID(args)
		if err != nil {
			d.reply(ctx, m, d.notices.InvalidID)
			return uuid.Nil, false
		}
		return id, true
	}
	if m.ThreadID != 0 {
		conv, err := d.engine.ConversationByTopic(ctx, m.ThreadID)
		if err != nil {
			d.logger.Error("topic lookup failed", "topic", m.ThreadID, "err", err)
			return uuid.Nil, false
		}
		if conv != nil {
			return conv.ID, true
		}
	}
	d.reply(ctx, m, notice.Render(d.notices.CommandUsage, map[string]string{"command": command}))
	return uuid.Nil, false
}

// reply answers in place: same chat, same topic, threaded to the message.
func (d *Dispatcher) reply(ctx context.Context, m *transport.IncomingMessage, text string) {
	dest := domain.Destination{ChatID: m.Chat.ID, TopicID: m.ThreadID, ReplyTo: m.MessageID}
	if _, err := d.tg.SendText(ctx, dest, text); err != nil {
		d.logger.Warn("cannot send notice", "chat", m.Chat.ID, "err", err)
	}
}
