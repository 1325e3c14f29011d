package transport

import (
	"encoding/json"
	"testing"
)

func TestCommand_Parsing(t *testing.T) {
	cases := []struct {
		text  string
		name  string
		args  string
		isCmd bool
	}{
		{"/lock", "lock", "", true},
		{"/lock abc-123", "lock", "abc-123", true},
		{"/lock@deskbridge_bot abc-123", "lock", "abc-123", true},
		{"/close@deskbridge_bot", "close", "", true},
		{"/list  ", "list", "", true},
		{"hello", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		m := &IncomingMessage{Text: tc.text}
		if m.IsCommand() != tc.isCmd {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.text, m.IsCommand(), tc.isCmd)
			continue
		}
		name, args := m.Command()
		if name != tc.name || args != tc.args {
			t.Errorf("Command(%q) = (%q, %q), want (%q, %q)", tc.text, name, args, tc.name, tc.args)
		}
	}
}

func TestUpdate_DecodesThreadID(t *testing.T) {
	raw := `{
		"update_id": 7,
		"message": {
			"message_id": 42,
			"message_thread_id": 99,
			"from": {"id": 1, "is_bot": false, "first_name": "Ann", "username": "ann"},
			"chat": {"id": -100123, "type": "supergroup", "title": "Support"},
			"date": 1700000000,
			"text": "hello",
			"reply_to_message": {
				"message_id": 41,
				"from": {"id": 2, "is_bot": true, "first_name": "bridge"},
				"chat": {"id": -100123, "type": "supergroup"},
				"date": 1699999999,
				"text": "Conversation ID: x"
			}
		}
	}`

	var u Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := u.Message
	if m == nil || m.ThreadID != 99 {
		t.Fatalf("thread id not decoded: %+v", m)
	}
	if m.ReplyTo == nil || !m.ReplyTo.From.IsBot {
		t.Fatalf("reply metadata not decoded: %+v", m.ReplyTo)
	}
	if m.Chat.Type != "supergroup" || m.Chat.ID != -100123 {
		t.Fatalf("chat not decoded: %+v", m.Chat)
	}
}

func TestUpdate_DecodesMedia(t *testing.T) {
	raw := `{
		"update_id": 8,
		"message": {
			"message_id": 43,
			"from": {"id": 1, "is_bot": false, "first_name": "Ann"},
			"chat": {"id": 1, "type": "private"},
			"date": 1700000000,
			"caption": "receipt",
			"photo": [{"file_id": "small"}, {"file_id": "large"}]
		}
	}`

	var u Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := u.Message
	if len(m.Photo) != 2 || m.Photo[1].FileID != "large" {
		t.Fatalf("photo sizes not decoded: %+v", m.Photo)
	}
	if m.Caption != "receipt" {
		t.Fatalf("caption not decoded: %q", m.Caption)
	}
}
