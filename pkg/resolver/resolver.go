// Package resolver turns one user input into one language-tagged answer,
// answering identity questions from the fixed script and everything else
// through the generation gateway.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/gateway"
	"github.com/Protocol-Lattice/saathi/pkg/identity"
	"github.com/Protocol-Lattice/saathi/pkg/langcode"
)

// Source records which path produced a Result.
type Source string

const (
	IdentityFastPath Source = "identity_fast_path"
	Generated        Source = "generated"
	IdentityOverride Source = "identity_override"
)

// Result is a resolved answer. OriginalText holds the generator's answer when
// the identity safety net replaced it.
type Result struct {
	LanguageCode string
	ResponseText string
	OriginalText string
	Source       Source
}

// VoiceResult adds the transcript for recorded input.
type VoiceResult struct {
	Result
	Transcript string
}

// TextGenerator is the part of the gateway used for typed input.
type TextGenerator interface {
	Generate(ctx context.Context, text string) (gateway.TextOutput, error)
}

// AudioGenerator is the part of the gateway used for recorded input.
type AudioGenerator interface {
	GenerateFromAudio(ctx context.Context, payload audio.Payload) (gateway.VoiceOutput, error)
}

// Options shared by both resolvers.
type Options struct {
	Table    *identity.Table
	Fallback string
	Logger   *zap.Logger
}

type core struct {
	table    *identity.Table
	fallback string
	logger   *zap.Logger
}

func newCore(opts Options) core {
	c := core{table: opts.Table, fallback: opts.Fallback, logger: opts.Logger}
	if c.table == nil {
		c.table = identity.Default()
	}
	if !langcode.Valid(c.fallback) {
		c.fallback = c.table.DefaultCode()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// identityFastPath answers from the script before any external call.
func (c core) identityFastPath(input string) (Result, bool) {
	m, ok := c.table.Classify(input)
	if !ok {
		return Result{}, false
	}
	c.logger.Info("identity question answered from script", zap.String("lang", m.Code))
	return Result{LanguageCode: m.Code, ResponseText: m.Canonical, Source: IdentityFastPath}, true
}

// normalizeLanguage coerces an invalid code to the fallback. This never fails.
func (c core) normalizeLanguage(res *Result) {
	code, ok := langcode.OrFallback(res.LanguageCode, c.fallback)
	if !ok {
		c.logger.Warn("model returned invalid language code",
			zap.String("lang", res.LanguageCode), zap.String("fallback", code))
	}
	res.LanguageCode = code
}

// identitySafetyNet replaces a generated answer with the canonical identity
// pair when the user's words, or failing that the generated text, match a
// trigger. The user's words take precedence so the reply stays in the
// language the user asked in.
func (c core) identitySafetyNet(userText string, res *Result) {
	m, ok := c.table.Classify(userText)
	if !ok {
		m, ok = c.table.Classify(res.ResponseText)
	}
	if !ok {
		return
	}
	if res.ResponseText == m.Canonical && res.LanguageCode == m.Code {
		return
	}
	c.logger.Info("overriding generated answer with identity script", zap.String("lang", m.Code))
	res.OriginalText = res.ResponseText
	res.ResponseText = m.Canonical
	res.LanguageCode = m.Code
	res.Source = IdentityOverride
}

// Text resolves typed input.
type Text struct {
	core
	gen TextGenerator
}

// NewText builds a text resolver over gen.
func NewText(gen TextGenerator, opts Options) *Text {
	return &Text{core: newCore(opts), gen: gen}
}

// Resolve answers input. Failures are *apperr.GenerationError values.
func (t *Text) Resolve(ctx context.Context, input string) (Result, error) {
	if res, ok := t.identityFastPath(input); ok {
		return res, nil
	}
	res, err := t.generate(ctx, input)
	if err != nil {
		return Result{}, err
	}
	t.normalizeLanguage(&res)
	t.identitySafetyNet(input, &res)
	return res, nil
}

func (t *Text) generate(ctx context.Context, input string) (Result, error) {
	t.logger.Debug("calling generation gateway")
	out, err := t.gen.Generate(ctx, input)
	if err != nil {
		t.logger.Error("generation failed", zap.Error(err))
		return Result{}, apperr.Wrap("resolve", apperr.KindUnknown, err)
	}
	return Result{LanguageCode: out.LanguageCode, ResponseText: out.ResponseText, Source: Generated}, nil
}

// Voice resolves recorded input. There is no raw text, so both identity
// checks run on the transcript after generation.
type Voice struct {
	core
	gen AudioGenerator
}

// NewVoice builds a voice resolver over gen.
func NewVoice(gen AudioGenerator, opts Options) *Voice {
	return &Voice{core: newCore(opts), gen: gen}
}

// Resolve transcribes and answers payload. An empty transcript is not an error.
func (v *Voice) Resolve(ctx context.Context, payload audio.Payload) (VoiceResult, error) {
	v.logger.Debug("calling generation gateway with audio", zap.Int("bytes", len(payload.Data)), zap.String("mime", payload.MIME))
	out, err := v.gen.GenerateFromAudio(ctx, payload)
	if err != nil {
		v.logger.Error("voice generation failed", zap.Error(err))
		return VoiceResult{}, apperr.Wrap("resolve_voice", apperr.KindUnknown, err)
	}
	res := VoiceResult{
		Result:     Result{LanguageCode: out.LanguageCode, ResponseText: out.ResponseText, Source: Generated},
		Transcript: out.Transcript,
	}
	v.normalizeLanguage(&res.Result)
	v.identitySafetyNet(res.Transcript, &res.Result)
	return res, nil
}
