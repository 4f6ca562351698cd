package models

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// ErrAudioUnsupported is returned by providers that cannot accept recorded audio.
var ErrAudioUnsupported = errors.New("provider does not accept audio attachments")

// AnthropicLLM implements Agent using Anthropic's Messages API.
type AnthropicLLM struct {
	Client       *anthropic.Client
	Model        string
	MaxTokens    int
	PromptPrefix string
}

// NewAnthropicLLM constructs a client. It reads ANTHROPIC_API_KEY from the env
// unless opts carries a key.
func NewAnthropicLLM(model string, opts Options) *AnthropicLLM {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	clientOpts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(key)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, anthropicopt.WithBaseURL(opts.BaseURL))
	}
	cl := anthropic.NewClient(clientOpts...)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicLLM{
		Client:       &cl,
		Model:        model,
		MaxTokens:    1024,
		PromptPrefix: opts.PromptPrefix,
	}
}

// Generate performs a single-turn completion and returns concatenated text.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (any, error) {
	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(withPrefix(a.PromptPrefix, prompt))),
		},
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

func (a *AnthropicLLM) GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error) {
	for _, f := range files {
		if f.IsAudio() {
			return nil, ErrAudioUnsupported
		}
	}
	return a.Generate(ctx, inlineTextFiles(prompt, files))
}

var _ Agent = (*AnthropicLLM)(nil)
