package transport

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"deskbridge/internal/domain"
)

// Substring signatures for untyped or string-only API errors. Known-fragile
// boundary: the Bot API reports most failures as human-readable descriptions,
// so matching on fragments is the only classification available beyond the
// HTTP code.
var (
	notModifiedSignatures = []string{"not modified", "not_modified"}
	contentSignatures     = []string{
		"message is too long",
		"file is too big",
		"wrong file identifier",
		"file part exceeded",
	}
	forbiddenSignatures = []string{
		"forbidden",
		"blocked by the user",
		"kicked",
	}
	topicDeadSignatures = []string{
		"thread not found",
		"topic_deleted",
		"topic_closed",
		"not found",
		"deleted",
		"deactivated",
		"chat not found",
	}
)

// classify wraps a Bot API error with its taxonomy kind. Typed *tgbotapi.Error
// values are preferred (code + description); anything else falls back to
// substring matching on the error text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	desc := err.Error()
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		desc = apiErr.Message
	}
	lower := strings.ToLower(desc)

	kind := domain.TransportOther
	switch {
	case matchesAny(lower, notModifiedSignatures):
		kind = domain.TransportNotModified
	case matchesAny(lower, contentSignatures):
		kind = domain.TransportContent
	case matchesAny(lower, forbiddenSignatures):
		kind = domain.TransportForbidden
	case matchesAny(lower, topicDeadSignatures):
		kind = domain.TransportTopicDead
	}

	return &domain.TransportError{Kind: kind, Op: op, Err: err}
}

func matchesAny(s string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
