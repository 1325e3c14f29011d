package transport

import "strings"

// Thin wire types for the Bot API surface this bot consumes. The pinned
// wrapper library predates forum topics (Bot API 6.3), so updates are decoded
// here instead of through its typed Update, which lacks message_thread_id.

// Update is one long-poll result.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message"`
}

// IncomingMessage carries the fields the router needs; everything else in the
// raw update is ignored.
type IncomingMessage struct {
	MessageID int64            `json:"message_id"`
	ThreadID  int64            `json:"message_thread_id"`
	From      *Sender          `json:"from"`
	Chat      Chat             `json:"chat"`
	Date      int64            `json:"date"`
	Text      string           `json:"text"`
	Caption   string           `json:"caption"`
	Photo     []FileRef        `json:"photo"`
	Document  *FileRef         `json:"document"`
	Audio     *FileRef         `json:"audio"`
	Voice     *FileRef         `json:"voice"`
	Video     *FileRef         `json:"video"`
	Sticker   *FileRef         `json:"sticker"`
	ReplyTo   *IncomingMessage `json:"reply_to_message"`
}

type Sender struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type FileRef struct {
	FileID string `json:"file_id"`
}

// IsCommand reports whether the message text is a bot command.
func (m *IncomingMessage) IsCommand() bool {
	return strings.HasPrefix(m.Text, "/")
}

// Command splits "/lock@somebot abc-123" into ("lock", "abc-123").
func (m *IncomingMessage) Command() (name, args string) {
	if !m.IsCommand() {
		return "", ""
	}
	text := m.Text[1:]
	if i := strings.IndexByte(text, ' '); i >= 0 {
		name, args = text[:i], strings.TrimSpace(text[i+1:])
	} else {
		name = text
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return name, args
}
