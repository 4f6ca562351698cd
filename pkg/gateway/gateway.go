// Package gateway wraps the generative model with the assistant's fixed
// instructions, an optional single tool round, and structured-output parsing.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/identity"
	"github.com/Protocol-Lattice/saathi/pkg/models"
	"github.com/Protocol-Lattice/saathi/pkg/tools"
)

// TextOutput is the gateway answer for typed input.
type TextOutput struct {
	LanguageCode string
	ResponseText string
}

// VoiceOutput is the gateway answer for recorded input.
type VoiceOutput struct {
	Transcript   string
	LanguageCode string
	ResponseText string
}

// Options configure a Gateway. Zero values pick the defaults.
type Options struct {
	Catalog   *tools.Catalog
	Table     *identity.Table
	Persona   string
	SessionID string
	// Timeout bounds each model call; zero leaves it to the caller's context.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Gateway issues one logical generation per call. The model may request at
// most one tool invocation, after which it is asked again with the result.
type Gateway struct {
	model     models.Agent
	catalog   *tools.Catalog
	table     *identity.Table
	persona   string
	sessionID string
	timeout   time.Duration
	logger    *zap.Logger
}

// New wires a gateway around model.
func New(model models.Agent, opts Options) (*Gateway, error) {
	if model == nil {
		return nil, errors.New("gateway: model is required")
	}
	g := &Gateway{
		model:     model,
		catalog:   opts.Catalog,
		table:     opts.Table,
		persona:   strings.TrimSpace(opts.Persona),
		sessionID: opts.SessionID,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if g.table == nil {
		g.table = identity.Default()
	}
	if g.persona == "" {
		g.persona = DefaultPersona
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g, nil
}

// Generate answers typed input.
func (g *Gateway) Generate(ctx context.Context, text string) (TextOutput, error) {
	const op = "generate"
	prompt, err := g.render(text, false)
	if err != nil {
		return TextOutput{}, apperr.Wrap(op, apperr.KindUnknown, err)
	}
	call := func(ctx context.Context, p string) (any, error) { return g.model.Generate(ctx, p) }
	out, err := g.run(ctx, op, prompt, call)
	if err != nil {
		return TextOutput{}, err
	}
	return TextOutput{LanguageCode: out.DetectedLanguage, ResponseText: out.ResponseText}, nil
}

// GenerateFromAudio transcribes and answers a recording in one call.
func (g *Gateway) GenerateFromAudio(ctx context.Context, payload audio.Payload) (VoiceOutput, error) {
	const op = "generate_from_audio"
	if payload.Empty() {
		return VoiceOutput{}, apperr.Wrap(op, apperr.KindEmptyCapture, apperr.ErrEmptyCapture)
	}
	prompt, err := g.render("", true)
	if err != nil {
		return VoiceOutput{}, apperr.Wrap(op, apperr.KindUnknown, err)
	}
	files := []models.File{{Name: "recording", MIME: payload.MIME, Data: payload.Data}}
	call := func(ctx context.Context, p string) (any, error) { return g.model.GenerateWithFiles(ctx, p, files) }
	out, err := g.run(ctx, op, prompt, call)
	if err != nil {
		return VoiceOutput{}, err
	}
	return VoiceOutput{
		Transcript:   out.TranscribedText,
		LanguageCode: out.DetectedLanguage,
		ResponseText: out.ResponseText,
	}, nil
}

type generateFunc func(ctx context.Context, prompt string) (any, error)

func (g *Gateway) run(ctx context.Context, op, prompt string, call generateFunc) (reply, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	g.logger.Debug("calling model", zap.String("op", op))
	raw, err := call(ctx, prompt)
	if err != nil {
		return reply{}, apperr.Wrap(op, apperr.KindUnknown, err)
	}
	text := models.CompletionText(raw)

	if tc, ok := parseToolCall(text); ok {
		result, err := g.invokeTool(ctx, tc)
		if err != nil {
			return reply{}, apperr.Wrap(op, apperr.KindToolExecution, err)
		}
		raw, err = call(ctx, followUp(prompt, tc.Name, result))
		if err != nil {
			return reply{}, apperr.Wrap(op, apperr.KindUnknown, err)
		}
		text = models.CompletionText(raw)
		if _, again := parseToolCall(text); again {
			return reply{}, apperr.Malformed(op, "model requested a second tool call")
		}
	}

	out, ok := parseReply(text)
	if !ok {
		return reply{}, apperr.Malformed(op, "model did not return a valid output structure: %q", truncate(text, 120))
	}
	return out, nil
}

func (g *Gateway) invokeTool(ctx context.Context, tc toolCall) (string, error) {
	tool, spec, ok := g.catalog.Lookup(tc.Name)
	if !ok {
		return "", fmt.Errorf("failed to call tool %q: unknown tool", tc.Name)
	}
	g.logger.Info("model requested tool", zap.String("tool", spec.Name))
	resp, err := tool.Invoke(ctx, tools.ToolRequest{SessionID: g.sessionID, Arguments: tc.Arguments})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
