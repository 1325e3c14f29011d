package notice

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRender_Substitution(t *testing.T) {
	got := Render("User: {{name}}\nConversation ID: {{id}}", map[string]string{
		"name": "Ann",
		"id":   "abc-123",
	})
	want := "User: Ann\nConversation ID: abc-123"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_NoVars(t *testing.T) {
	if got := Render("plain", nil); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaults_CarryConversationID(t *testing.T) {
	// The agent-reply router recovers the conversation from this exact token
	// in the bot's own messages; the default texts must keep it.
	d := Defaults()
	for name, tpl := range map[string]string{
		"newConversation": d.NewConversation,
		"fallbackHeader":  d.FallbackHeader,
	} {
		if !strings.Contains(tpl, "Conversation ID:") || !strings.Contains(tpl, "{{id}}") {
			t.Errorf("%s must embed the conversation id token: %q", name, tpl)
		}
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), discard())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Welcome != Defaults().Welcome {
		t.Fatal("missing file should yield defaults")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notices.yaml")
	content := "welcome: \"hi there\"\nlocked: \"taken\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path, discard())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Welcome != "hi there" || got.Locked != "taken" {
		t.Fatalf("overrides not applied: %q, %q", got.Welcome, got.Locked)
	}
	if got.Closed != Defaults().Closed {
		t.Fatal("unset fields must keep defaults")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notices.yaml")
	os.WriteFile(path, []byte("welcome: [unterminated"), 0o600)
	if _, err := Load(path, discard()); err == nil {
		t.Fatal("expected parse error")
	}
}
