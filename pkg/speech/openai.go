package speech

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer renders speech with the OpenAI speech endpoint and hands
// the audio to a Player. Its voices are multilingual, so each configured
// language is listed with the same voice.
type OpenAISynthesizer struct {
	Client    *openai.Client
	Model     openai.SpeechModel
	Voice     openai.SpeechVoice
	Languages []string
	Player    Player

	ready chan struct{}
}

// OpenAIOptions configure NewOpenAISynthesizer.
type OpenAIOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	Voice     string
	Languages []string
}

// NewOpenAISynthesizer builds a synthesizer; the key falls back to OPENAI_API_KEY.
func NewOpenAISynthesizer(opts OpenAIOptions, player Player) *OpenAISynthesizer {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := openai.SpeechModel(opts.Model)
	if model == "" {
		model = openai.TTSModel1
	}
	voice := openai.SpeechVoice(opts.Voice)
	if voice == "" {
		voice = openai.VoiceNova
	}
	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"en", "hi", "bn"}
	}
	if player == nil {
		player = DiscardPlayer{}
	}
	ready := make(chan struct{})
	close(ready)
	return &OpenAISynthesizer{
		Client:    openai.NewClientWithConfig(cfg),
		Model:     model,
		Voice:     voice,
		Languages: langs,
		Player:    player,
		ready:     ready,
	}
}

func (s *OpenAISynthesizer) Voices() []Voice {
	voices := make([]Voice, 0, len(s.Languages))
	for _, lang := range s.Languages {
		voices = append(voices, Voice{ID: string(s.Voice), Name: string(s.Voice), Lang: lang})
	}
	return voices
}

func (s *OpenAISynthesizer) VoicesReady() <-chan struct{} { return s.ready }

func (s *OpenAISynthesizer) Speak(ctx context.Context, u Utterance) error {
	voice := s.Voice
	if u.Voice != nil && u.Voice.ID != "" {
		voice = openai.SpeechVoice(u.Voice.ID)
	}
	resp, err := s.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.Model,
		Input:          u.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()
	if err := s.Player.Play(ctx, resp, "mp3"); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ErrInterrupted
		}
		return err
	}
	return nil
}
