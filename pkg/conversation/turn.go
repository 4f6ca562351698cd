// Package conversation owns the turn list and the interaction modes of one
// conversation session, and reconciles resolver results into them.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Sender authors a turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Turn is one entry in the conversation.
type Turn struct {
	// ID is a version 7 UUID, so IDs sort in insertion order.
	ID           string `json:"id"`
	Sender       Sender `json:"sender"`
	Text         string `json:"text"`
	OriginalText string `json:"originalText,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
	IsGenerating bool   `json:"isGenerating"`
	IsError      bool   `json:"isError"`
	// Progress marks a transient system turn that is always removed or
	// turned into an error once its operation finishes.
	Progress  bool      `json:"progress,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Session) newTurn(sender Sender, text, lang string) *Turn {
	return &Turn{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Sender:       sender,
		Text:         text,
		LanguageCode: lang,
		Timestamp:    s.now(),
	}
}

// Progress and placeholder texts.
const (
	RecordingText   = "Recording started..."
	ProcessingText  = "Processing voice..."
	PlaceholderText = "..."
	NoSpeechText    = "(no speech recognized)"
)
