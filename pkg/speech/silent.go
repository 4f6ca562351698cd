package speech

import (
	"context"
	"sync"
	"time"
)

// Silent is a synthesizer that plays nothing. It records what it was asked to
// say and takes Duration per utterance. Voices become ready when MarkReady is
// called, or immediately when built with NewSilent.
type Silent struct {
	Duration time.Duration

	mu     sync.Mutex
	voices []Voice
	ready  chan struct{}
	once   sync.Once
	spoken []Utterance
}

// NewSilent returns a Silent synthesizer whose voices are ready.
func NewSilent(voices ...Voice) *Silent {
	s := NewSilentLoading()
	s.MarkReady(voices...)
	return s
}

// NewSilentLoading returns a Silent synthesizer still loading its voices.
func NewSilentLoading() *Silent {
	return &Silent{ready: make(chan struct{})}
}

// MarkReady publishes voices and releases deferred speech.
func (s *Silent) MarkReady(voices ...Voice) {
	s.once.Do(func() {
		s.mu.Lock()
		s.voices = append([]Voice(nil), voices...)
		s.mu.Unlock()
		close(s.ready)
	})
}

func (s *Silent) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Voice(nil), s.voices...)
}

func (s *Silent) VoicesReady() <-chan struct{} { return s.ready }

func (s *Silent) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()
	if s.Duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}

// Spoken returns the utterances played so far.
func (s *Silent) Spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.spoken...)
}
