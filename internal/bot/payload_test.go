package bot

import (
	"testing"

	"deskbridge/internal/domain"
	"deskbridge/internal/transport"
)

func TestPayloadOf_Text(t *testing.T) {
	m := &transport.IncomingMessage{
		MessageID: 5,
		Chat:      transport.Chat{ID: 77},
		Text:      "hello",
	}
	p := payloadOf(m)
	if p.Kind != domain.KindText || p.Content != "hello" {
		t.Fatalf("got %+v", p)
	}
	if p.SourceChatID != 77 || p.SourceMessageID != 5 {
		t.Fatalf("source not captured: %+v", p)
	}
}

func TestPayloadOf_PhotoUsesLargestSize(t *testing.T) {
	m := &transport.IncomingMessage{
		Chat:    transport.Chat{ID: 1},
		Photo:   []transport.FileRef{{FileID: "s"}, {FileID: "m"}, {FileID: "l"}},
		Caption: "receipt",
	}
	p := payloadOf(m)
	if p.Kind != domain.KindPhoto {
		t.Fatalf("kind = %q", p.Kind)
	}
	if p.Content != "l|receipt" {
		t.Fatalf("content = %q, want largest file id plus caption", p.Content)
	}
}

func TestPayloadOf_DocumentWithoutCaption(t *testing.T) {
	m := &transport.IncomingMessage{
		Chat:     transport.Chat{ID: 1},
		Document: &transport.FileRef{FileID: "doc-1"},
	}
	p := payloadOf(m)
	if p.Kind != domain.KindDocument || p.Content != "doc-1" {
		t.Fatalf("got %+v", p)
	}
}

func TestPayloadOf_Voice(t *testing.T) {
	m := &transport.IncomingMessage{
		Chat:  transport.Chat{ID: 1},
		Voice: &transport.FileRef{FileID: "v-1"},
	}
	if p := payloadOf(m); p.Kind != domain.KindVoice {
		t.Fatalf("kind = %q", p.Kind)
	}
}

func TestPayloadOf_UnknownMedia(t *testing.T) {
	m := &transport.IncomingMessage{Chat: transport.Chat{ID: 1}}
	p := payloadOf(m)
	if p.Kind != domain.KindText || p.Content != "[unknown media]" {
		t.Fatalf("got %+v", p)
	}
}

func TestIdentityOf(t *testing.T) {
	s := &transport.Sender{ID: 9, Username: "ann", FirstName: "Ann", LastName: "B"}
	id := identityOf(s)
	if id.TelegramID != 9 || id.Username != "ann" || id.FirstName != "Ann" || id.LastName != "B" {
		t.Fatalf("got %+v", id)
	}
}
