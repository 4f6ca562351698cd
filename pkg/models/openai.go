package models

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAILLM struct {
	Client             *openai.Client
	Model              string
	PromptPrefix       string
	TranscriptionModel string
}

func NewOpenAILLM(model string, opts Options) *OpenAILLM {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	transcription := opts.TranscriptionModel
	if transcription == "" {
		transcription = openai.Whisper1
	}
	return &OpenAILLM{
		Client:             openai.NewClientWithConfig(cfg),
		Model:              model,
		PromptPrefix:       opts.PromptPrefix,
		TranscriptionModel: transcription,
	}
}

func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (any, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: withPrefix(o.PromptPrefix, prompt),
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithFiles transcribes audio attachments with Whisper and inlines the
// transcript, since chat completions do not accept recorded audio here.
func (o *OpenAILLM) GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error) {
	var sb strings.Builder
	sb.WriteString(inlineTextFiles(prompt, files))
	for _, f := range files {
		if !f.IsAudio() {
			continue
		}
		text, err := o.Transcribe(ctx, f)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "\n\nAudio transcript (%s):\n%s", AudioFileName(f), text)
	}
	return o.Generate(ctx, sb.String())
}

// Transcribe converts one audio attachment to text.
func (o *OpenAILLM) Transcribe(ctx context.Context, f File) (string, error) {
	resp, err := o.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.TranscriptionModel,
		FilePath: AudioFileName(f),
		Reader:   bytes.NewReader(f.Data),
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

var _ Agent = (*OpenAILLM)(nil)
