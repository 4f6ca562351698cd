package models

import (
	"context"
	"fmt"
	"strings"
)

// Options carry provider settings. Empty fields fall back to the provider's
// environment variables and defaults.
type Options struct {
	APIKey       string
	BaseURL      string
	PromptPrefix string
	// TranscriptionModel is used by providers that cannot take audio directly.
	TranscriptionModel string
}

// NewLLMProvider returns a concrete Agent.
func NewLLMProvider(ctx context.Context, provider, model string, opts Options) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAILLM(model, opts), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, model, opts)
	case "ollama":
		return NewOllamaLLM(model, opts)
	case "anthropic", "claude":
		return NewAnthropicLLM(model, opts), nil
	case "dummy":
		return NewDummyLLM(opts.PromptPrefix), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// CompletionText flattens whatever a provider returned into plain text.
func CompletionText(completion any) string {
	switch v := completion.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func withPrefix(prefix, prompt string) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return p + "\n\n" + prompt
	}
	return prompt
}
