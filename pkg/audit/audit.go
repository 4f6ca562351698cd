// Package audit keeps an append-only record of resolved exchanges, including
// the generator text that an identity override replaced.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel is how the user asked.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)

// Entry is one resolved exchange.
type Entry struct {
	ID           string    `json:"id" bson:"_id"`
	SessionID    string    `json:"sessionId" bson:"session_id"`
	Channel      Channel   `json:"channel" bson:"channel"`
	Input        string    `json:"input" bson:"input"`
	LanguageCode string    `json:"languageCode" bson:"language_code"`
	Response     string    `json:"response" bson:"response"`
	OriginalText string    `json:"originalText,omitempty" bson:"original_text,omitempty"`
	Source       string    `json:"source" bson:"source"`
	At           time.Time `json:"at" bson:"at"`
}

// Log stores entries. Implementations must be safe for concurrent use.
type Log interface {
	Append(ctx context.Context, e Entry) error
}

// prepare fills the ID and timestamp when missing.
func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

// Memory is an in-process Log.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory returns an empty in-memory log.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, prepare(e))
	return nil
}

// Entries returns a copy of all entries in append order.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error { return nil }
