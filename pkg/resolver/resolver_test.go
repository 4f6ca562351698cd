package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/gateway"
	"github.com/Protocol-Lattice/saathi/pkg/identity"
)

type stubGateway struct {
	text  gateway.TextOutput
	voice gateway.VoiceOutput
	err   error
	calls int
}

func (s *stubGateway) Generate(context.Context, string) (gateway.TextOutput, error) {
	s.calls++
	return s.text, s.err
}

func (s *stubGateway) GenerateFromAudio(context.Context, audio.Payload) (gateway.VoiceOutput, error) {
	s.calls++
	return s.voice, s.err
}

func canonical(code string) string {
	return identity.Default().Canonical(code).Canonical
}

func TestIdentityQuestionsNeverReachTheGateway(t *testing.T) {
	gen := &stubGateway{}
	r := NewText(gen, Options{})
	for _, entry := range identity.Default().Entries() {
		for _, phrase := range entry.Triggers {
			res, err := r.Resolve(context.Background(), "  "+phrase+"?")
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", phrase, err)
			}
			if res.LanguageCode != entry.Code || res.ResponseText != entry.Canonical || res.Source != IdentityFastPath {
				t.Fatalf("Resolve(%q) = %+v", phrase, res)
			}
		}
	}
	if gen.calls != 0 {
		t.Fatalf("gateway called %d times for identity questions", gen.calls)
	}
}

func TestWhoAreYouScenario(t *testing.T) {
	gen := &stubGateway{}
	res, err := NewText(gen, Options{}).Resolve(context.Background(), "who are you")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.LanguageCode != "en" || res.ResponseText != canonical("en") || gen.calls != 0 {
		t.Fatalf("unexpected result %+v with %d gateway calls", res, gen.calls)
	}
}

func TestGeneratedAnswerPassesThrough(t *testing.T) {
	gen := &stubGateway{text: gateway.TextOutput{LanguageCode: "en", ResponseText: "Wheat trades near 2425 per quintal."}}
	res, err := NewText(gen, Options{}).Resolve(context.Background(), "What's today's market price for wheat?")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := Result{LanguageCode: "en", ResponseText: "Wheat trades near 2425 per quintal.", Source: Generated}
	if res != want || gen.calls != 1 {
		t.Fatalf("got %+v, want %+v", res, want)
	}
}

func TestInvalidLanguageFallsBack(t *testing.T) {
	for _, code := range []string{"", "EN", "english", "en_us", "e", "en-us", "abcd"} {
		gen := &stubGateway{text: gateway.TextOutput{LanguageCode: code, ResponseText: "ok"}}
		res, err := NewText(gen, Options{Fallback: "en"}).Resolve(context.Background(), "compost tips")
		if err != nil {
			t.Fatalf("code %q: unexpected error %v", code, err)
		}
		if res.LanguageCode != "en" {
			t.Fatalf("code %q: expected fallback en, got %q", code, res.LanguageCode)
		}
	}
	gen := &stubGateway{text: gateway.TextOutput{LanguageCode: "pt-BR", ResponseText: "ok"}}
	res, _ := NewText(gen, Options{}).Resolve(context.Background(), "dicas")
	if res.LanguageCode != "pt-BR" {
		t.Fatalf("valid region code must be kept, got %q", res.LanguageCode)
	}
}

func TestSafetyNetOverridesNonCompliantGeneration(t *testing.T) {
	generated := "I am a large language model. Tumi ke? Ami ek AI."
	gen := &stubGateway{text: gateway.TextOutput{LanguageCode: "en", ResponseText: generated}}
	res, err := NewText(gen, Options{}).Resolve(context.Background(), "tell me about yourself")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.Source != IdentityOverride || res.LanguageCode != "bn" || res.ResponseText != canonical("bn") {
		t.Fatalf("expected bengali identity override, got %+v", res)
	}
	if res.OriginalText != generated {
		t.Fatalf("original text must be preserved, got %q", res.OriginalText)
	}
}

func TestSafetyNetLeavesCompliantAnswer(t *testing.T) {
	gen := &stubGateway{text: gateway.TextOutput{LanguageCode: "hi", ResponseText: canonical("hi")}}
	res, err := NewText(gen, Options{}).Resolve(context.Background(), "mujhe apne baare mein batao")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.Source != Generated || res.OriginalText != "" {
		t.Fatalf("compliant answer must not be overridden: %+v", res)
	}
}

func TestGatewayErrorsAreGenerationErrors(t *testing.T) {
	gen := &stubGateway{err: errors.New("API key not valid")}
	_, err := NewText(gen, Options{}).Resolve(context.Background(), "hello")
	var ge *apperr.GenerationError
	if !errors.As(err, &ge) || ge.Kind != apperr.KindAuthentication {
		t.Fatalf("expected authentication GenerationError, got %v", err)
	}
}

func TestVoiceOverridesOnTranscript(t *testing.T) {
	gen := &stubGateway{voice: gateway.VoiceOutput{Transcript: "Saathi kaun hai?", LanguageCode: "en", ResponseText: "I'm an assistant."}}
	res, err := NewVoice(gen, Options{}).Resolve(context.Background(), audio.Payload{Data: []byte{1}})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.Transcript != "Saathi kaun hai?" || res.LanguageCode != "hi" || res.ResponseText != canonical("hi") {
		t.Fatalf("expected hindi override, got %+v", res)
	}
	if res.OriginalText != "I'm an assistant." || res.Source != IdentityOverride {
		t.Fatalf("unexpected override bookkeeping: %+v", res)
	}
}

func TestVoiceEmptyTranscriptIsNotAnError(t *testing.T) {
	gen := &stubGateway{voice: gateway.VoiceOutput{LanguageCode: "??", ResponseText: "I could not hear anything."}}
	res, err := NewVoice(gen, Options{}).Resolve(context.Background(), audio.Payload{Data: []byte{1}})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.Transcript != "" || res.LanguageCode != "en" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestVoiceErrors(t *testing.T) {
	gen := &stubGateway{err: errors.New("503 Service Unavailable")}
	_, err := NewVoice(gen, Options{}).Resolve(context.Background(), audio.Payload{Data: []byte{1}})
	if apperr.Classify(err) != apperr.KindServiceOverloaded {
		t.Fatalf("expected overloaded, got %v", err)
	}
}
