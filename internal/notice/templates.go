// Package notice holds every human-visible message the bot sends. Operators
// can override the defaults with a YAML file; unset fields keep the default.
package notice

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates are rendered with {{placeholder}} substitution. Raw transport
// errors are never interpolated into any of these.
type Templates struct {
	Welcome             string `yaml:"welcome"`
	NewConversation     string `yaml:"newConversation"`     // {{name}}, {{id}}
	FallbackHeader      string `yaml:"fallbackHeader"`      // {{name}}, {{id}}, {{kind}}
	AutoLocked          string `yaml:"autoLocked"`          // -
	LockedByOther       string `yaml:"lockedByOther"`       // -
	DeliveryFailed      string `yaml:"deliveryFailed"`      // -
	Locked              string `yaml:"locked"`              // -
	LockFailed          string `yaml:"lockFailed"`          // -
	Unlocked            string `yaml:"unlocked"`            // -
	UnlockFailed        string `yaml:"unlockFailed"`        // -
	Closed              string `yaml:"closed"`              // -
	CloseFailed         string `yaml:"closeFailed"`         // -
	InvalidID           string `yaml:"invalidId"`           // -
	CommandUsage        string `yaml:"commandUsage"`        // {{command}}
	NoOpenConversations string `yaml:"noOpenConversations"` // -
	ListHeader          string `yaml:"listHeader"`          // -
	ConversationClosed  string `yaml:"conversationClosed"`  // -
}

func Defaults() *Templates {
	return &Templates{
		Welcome: "👋 <b>Welcome to support!</b>\n\n" +
			"Send your message directly here and an agent will respond shortly.\n" +
			"<i>Text, photos, documents, and voice messages all work.</i>",
		NewConversation: "🆕 <b>New conversation</b>\n" +
			"User: {{name}}\n" +
			"Conversation ID: <code>{{id}}</code>",
		FallbackHeader: "📩 <b>New message</b> (type: {{kind}})\n" +
			"User: {{name}}\n" +
			"Conversation ID: <code>{{id}}</code>\n" +
			"<i>(topic unavailable, delivered to general)</i>",
		AutoLocked:          "🔒 Conversation auto-locked to you.",
		LockedByOther:       "🔒 Locked by another agent.",
		DeliveryFailed:      "❌ Failed to deliver to the user (blocked the bot?).",
		Locked:              "🔒 Conversation locked.",
		LockFailed:          "❌ Could not lock (unknown id, closed, or already locked).",
		Unlocked:            "🔓 Conversation unlocked.",
		UnlockFailed:        "❌ Could not unlock (only the holding agent can).",
		Closed:              "✅ Conversation closed.",
		CloseFailed:         "❌ Could not close (unknown id).",
		InvalidID:           "Invalid conversation id.",
		CommandUsage:        "Usage: /{{command}} <conversation_id> (or run it inside a topic)",
		NoOpenConversations: "No open conversations.",
		ListHeader:          "<b>Open conversations:</b>",
		ConversationClosed:  "❌ This conversation is closed.",
	}
}

// Load reads overrides from path. A missing file is not an error: defaults
// are returned as-is.
func Load(path string, logger *slog.Logger) (*Templates, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("notice template file does not exist, using defaults", "path", path)
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notice templates: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse notice templates %s: %w", path, err)
	}
	logger.Info("loaded notice template overrides", "path", path)
	return t, nil
}

// Render substitutes {{key}} placeholders.
func Render(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
