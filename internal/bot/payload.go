package bot

import (
	"deskbridge/internal/domain"
	"deskbridge/internal/transport"
)

func identityOf(s *transport.Sender) domain.Identity {
	return domain.Identity{
		TelegramID: s.ID,
		Username:   s.Username,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
	}
}

// payloadOf extracts the kind and a storable content summary from a message.
// Delivery itself uses copy semantics, so the content here is for the record,
// not for re-sending: media is stored as its file id plus any caption.
func payloadOf(m *transport.IncomingMessage) domain.Payload {
	p := domain.Payload{
		SourceChatID:    m.Chat.ID,
		SourceMessageID: m.MessageID,
	}
	switch {
	case m.Text != "":
		p.Kind, p.Content = domain.KindText, m.Text
	case len(m.Photo) > 0:
		// The last size is the largest rendition.
		p.Kind, p.Content = domain.KindPhoto, withCaption(m.Photo[len(m.Photo)-1].FileID, m.Caption)
	case m.Document != nil:
		p.Kind, p.Content = domain.KindDocument, withCaption(m.Document.FileID, m.Caption)
	case m.Audio != nil:
		p.Kind, p.Content = domain.KindAudio, withCaption(m.Audio.FileID, m.Caption)
	case m.Voice != nil:
		p.Kind, p.Content = domain.KindVoice, withCaption(m.Voice.FileID, m.Caption)
	case m.Video != nil:
		p.Kind, p.Content = domain.KindVideo, withCaption(m.Video.FileID, m.Caption)
	case m.Sticker != nil:
		p.Kind, p.Content = domain.KindSticker, m.Sticker.FileID
	default:
		p.Kind, p.Content = domain.KindText, "[unknown media]"
	}
	return p
}

func withCaption(fileID, caption string) string {
	if caption == "" {
		return fileID
	}
	return fileID + "|" + caption
}
