// Package speech plays assistant answers aloud with one active utterance at a time.
package speech

import (
	"context"
	"errors"
)

// ErrInterrupted is reported when playback is cut short by Stop or a newer Speak.
var ErrInterrupted = errors.New("speech: interrupted")

// ErrSpeakPending rejects a Speak for text that is already waiting for voices.
var ErrSpeakPending = errors.New("speech: identical utterance already pending")

// Voice is one synthesis voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Utterance is a resolved playback request. A nil Voice asks the synthesizer
// for its default voice; Lang is always the tag to request.
type Utterance struct {
	Text  string
	Lang  string
	Voice *Voice
}

// Synthesizer is the text-to-speech engine.
type Synthesizer interface {
	// Voices lists the voices enumerable right now. It may be empty until
	// VoicesReady is closed.
	Voices() []Voice
	VoicesReady() <-chan struct{}
	// Speak plays u and returns when playback ends. Cancelling ctx stops
	// playback and makes Speak return ctx.Err() or ErrInterrupted.
	Speak(ctx context.Context, u Utterance) error
}

// Hooks report playback progress. All fields are optional.
type Hooks struct {
	OnStart func(Utterance)
	OnEnd   func(Utterance)
	OnError func(error)
}
