// Package transport speaks to the Telegram Bot API: topic lifecycle calls,
// copy/send delivery, and the long-poll update feed. Errors are classified
// into domain.TransportError kinds so the engine never inspects Telegram
// strings itself.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"deskbridge/internal/domain"
)

const (
	pollTimeoutSeconds = 30
	pollRetryBackoff   = 3 * time.Second
)

// Telegram implements domain.Transport against a single agent group.
type Telegram struct {
	bot       *tgbotapi.BotAPI
	groupID   int64
	parseMode string
	logger    *slog.Logger
}

type Config struct {
	Token        string
	AgentGroupID int64
	ParseMode    string
	Logger       *slog.Logger
}

func New(cfg Config) (*Telegram, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "HTML"
	}
	cfg.Logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return &Telegram{
		bot:       bot,
		groupID:   cfg.AgentGroupID,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}, nil
}

// GroupID returns the agent group chat id this transport is bound to.
func (t *Telegram) GroupID() int64 { return t.groupID }

// Self returns the bot's username.
func (t *Telegram) Self() string { return t.bot.Self.UserName }

// The forum-topic methods (createForumTopic, editForumTopic) and topic-aware
// sends arrived in Bot API 6.3, after the wrapper's last release, so they go
// through MakeRequest with hand-built params.

func (t *Telegram) CreateTopic(ctx context.Context, name string) (int64, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", t.groupID)
	params.AddNonEmpty("name", name)

	resp, err := t.bot.MakeRequest("createForumTopic", params)
	if err != nil {
		return 0, classify("createForumTopic", err)
	}
	var topic struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	if err := json.Unmarshal(resp.Result, &topic); err != nil {
		return 0, fmt.Errorf("createForumTopic: decode result: %w", err)
	}
	return topic.MessageThreadID, nil
}

func (t *Telegram) RenameTopic(ctx context.Context, topicID int64, name string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", t.groupID)
	params.AddNonZero64("message_thread_id", topicID)
	params.AddNonEmpty("name", name)

	if _, err := t.bot.MakeRequest("editForumTopic", params); err != nil {
		return classify("editForumTopic", err)
	}
	return nil
}

func (t *Telegram) Relay(ctx context.Context, p domain.Payload, dest domain.Destination) (int64, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", dest.ChatID)
	params.AddNonZero64("from_chat_id", p.SourceChatID)
	params.AddNonZero64("message_id", p.SourceMessageID)
	params.AddNonZero64("message_thread_id", dest.TopicID)
	params.AddNonZero64("reply_to_message_id", dest.ReplyTo)

	resp, err := t.bot.MakeRequest("copyMessage", params)
	if err != nil {
		return 0, classify("copyMessage", err)
	}
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("copyMessage: decode result: %w", err)
	}
	return msg.MessageID, nil
}

func (t *Telegram) SendText(ctx context.Context, dest domain.Destination, text string) (int64, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", dest.ChatID)
	params.AddNonZero64("message_thread_id", dest.TopicID)
	params.AddNonZero64("reply_to_message_id", dest.ReplyTo)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", t.parseMode)

	resp, err := t.bot.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("sendMessage: decode result: %w", err)
	}
	return msg.MessageID, nil
}

// DropPendingUpdates discards any backlog accumulated while the bot was down.
func (t *Telegram) DropPendingUpdates() error {
	params := tgbotapi.Params{}
	params.AddBool("drop_pending_updates", true)
	_, err := t.bot.MakeRequest("deleteWebhook", params)
	return err
}

// Updates starts long polling and returns the update feed. The channel closes
// when ctx is cancelled.
func (t *Telegram) Updates(ctx context.Context) <-chan Update {
	ch := make(chan Update, 64)
	go t.poll(ctx, ch)
	return ch
}

func (t *Telegram) poll(ctx context.Context, ch chan<- Update) {
	defer close(ch)
	var offset int64

	t.logger.Info("telegram polling started")
	for ctx.Err() == nil {
		params := tgbotapi.Params{}
		params.AddNonZero64("offset", offset)
		params.AddNonZero("timeout", pollTimeoutSeconds)

		resp, err := t.bot.MakeRequest("getUpdates", params)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.logger.Warn("getUpdates failed, backing off", "err", err, "backoff", pollRetryBackoff)
			select {
			case <-time.After(pollRetryBackoff):
			case <-ctx.Done():
			}
			continue
		}

		var updates []Update
		if err := json.Unmarshal(resp.Result, &updates); err != nil {
			t.logger.Error("cannot decode updates", "err", err)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			select {
			case ch <- u:
			case <-ctx.Done():
				return
			}
		}
	}
	t.logger.Info("telegram polling stopped")
}
