package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiLLM struct {
	Client       *genai.Client
	Model        string
	PromptPrefix string
}

func NewGeminiLLM(ctx context.Context, model string, opts Options) (*GeminiLLM, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiLLM{Client: client, Model: model, PromptPrefix: opts.PromptPrefix}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (any, error) {
	return g.generate(ctx, genai.Text(withPrefix(g.PromptPrefix, prompt)))
}

// GenerateWithFiles sends audio attachments as inline blobs so the model can
// transcribe them itself.
func (g *GeminiLLM) GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error) {
	parts := []genai.Part{genai.Text(withPrefix(g.PromptPrefix, inlineTextFiles(prompt, files)))}
	for _, f := range files {
		if !f.IsAudio() || len(f.Data) == 0 {
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: NormalizeMIME(f.Name, f.MIME), Data: f.Data})
	}
	return g.generate(ctx, parts...)
}

func (g *GeminiLLM) generate(ctx context.Context, parts ...genai.Part) (any, error) {
	model := g.Client.GenerativeModel(g.Model)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying client.
func (g *GeminiLLM) Close() error {
	return g.Client.Close()
}

var _ Agent = (*GeminiLLM)(nil)
