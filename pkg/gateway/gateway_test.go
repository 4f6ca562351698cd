package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/identity"
	"github.com/Protocol-Lattice/saathi/pkg/models"
	"github.com/Protocol-Lattice/saathi/pkg/tools"
)

type stubModel struct {
	replies []string
	err     error
	prompts []string
	files   [][]models.File
}

func (m *stubModel) next(prompt string) (any, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func (m *stubModel) Generate(_ context.Context, prompt string) (any, error) {
	return m.next(prompt)
}

func (m *stubModel) GenerateWithFiles(_ context.Context, prompt string, files []models.File) (any, error) {
	m.files = append(m.files, files)
	return m.next(prompt)
}

type stubTool struct {
	name  string
	out   string
	err   error
	calls []tools.ToolRequest
}

func (s *stubTool) Spec() tools.ToolSpec {
	return tools.ToolSpec{Name: s.name, Description: "stub " + s.name}
}

func (s *stubTool) Invoke(_ context.Context, req tools.ToolRequest) (tools.ToolResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return tools.ToolResponse{}, s.err
	}
	return tools.ToolResponse{Content: s.out}, nil
}

func newGateway(t *testing.T, model models.Agent, ts ...tools.Tool) *Gateway {
	t.Helper()
	catalog, err := tools.NewCatalog(ts...)
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	g, err := New(model, Options{Catalog: catalog, SessionID: "s1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return g
}

func TestGenerateParsesContract(t *testing.T) {
	model := &stubModel{replies: []string{"```json\n{\"detectedLanguage\":\"hi\",\"responseText\":\"नमस्ते\"}\n```"}}
	out, err := newGateway(t, model).Generate(context.Background(), "namaste")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out.LanguageCode != "hi" || out.ResponseText != "नमस्ते" {
		t.Fatalf("unexpected output: %+v", out)
	}
	prompt := model.prompts[0]
	for _, entry := range identity.Default().Entries() {
		if !strings.Contains(prompt, entry.Canonical) {
			t.Fatalf("instructions must embed the %s identity text", entry.Code)
		}
	}
	if !strings.Contains(prompt, "<input>\nnamaste\n</input>") || !strings.Contains(prompt, DefaultPersona) {
		t.Fatalf("prompt missing input or persona:\n%s", prompt)
	}
	if strings.Contains(prompt, "tool:<name>") {
		t.Fatalf("no tool instructions expected without tools")
	}
}

func TestGenerateRunsOneToolRound(t *testing.T) {
	search := &stubTool{name: "search", out: "wheat is 2425 per quintal"}
	model := &stubModel{replies: []string{
		`tool:search {"query":"wheat price today"}`,
		`{"detectedLanguage":"en","responseText":"Wheat sells for about 2425 per quintal today."}`,
	}}
	out, err := newGateway(t, model, search).Generate(context.Background(), "What's today's market price for wheat?")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out.ResponseText != "Wheat sells for about 2425 per quintal today." || out.LanguageCode != "en" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(search.calls) != 1 || search.calls[0].Arguments["query"] != "wheat price today" || search.calls[0].SessionID != "s1" {
		t.Fatalf("unexpected tool calls: %+v", search.calls)
	}
	if len(model.prompts) != 2 || !strings.Contains(model.prompts[1], "Tool result (search):\nwheat is 2425 per quintal") {
		t.Fatalf("follow-up prompt must carry the tool result: %v", model.prompts)
	}
	if !strings.Contains(model.prompts[0], "- search: stub search") {
		t.Fatalf("tools must be listed in the instructions")
	}
}

func TestGenerateRejectsSecondToolCall(t *testing.T) {
	search := &stubTool{name: "search", out: "x"}
	model := &stubModel{replies: []string{"tool:search rain", "tool:search more rain"}}
	_, err := newGateway(t, model, search).Generate(context.Background(), "rain?")
	if apperr.Classify(err) != apperr.KindMalformedOutput {
		t.Fatalf("expected malformed output, got %v", err)
	}
	if len(search.calls) != 1 || search.calls[0].Arguments["query"] != "rain" {
		t.Fatalf("expected exactly one tool call with plain-text query, got %+v", search.calls)
	}
}

func TestGenerateToolFailures(t *testing.T) {
	model := &stubModel{replies: []string{"tool:weather {}"}}
	_, err := newGateway(t, model).Generate(context.Background(), "weather?")
	if apperr.Classify(err) != apperr.KindToolExecution {
		t.Fatalf("unknown tool should be a tool failure, got %v", err)
	}

	failing := &stubTool{name: "search", err: errors.New("PermissionDenied")}
	model = &stubModel{replies: []string{"tool:search {\"query\":\"x\"}"}}
	_, err = newGateway(t, model, failing).Generate(context.Background(), "x")
	if apperr.Classify(err) != apperr.KindToolExecution {
		t.Fatalf("tool error should be a tool failure, got %v", err)
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	for _, raw := range []string{"just prose", `{"detectedLanguage":"en"}`, `{"responseText": 42}`, `{"responseText": "x"`} {
		model := &stubModel{replies: []string{raw}}
		_, err := newGateway(t, model).Generate(context.Background(), "hello")
		var ge *apperr.GenerationError
		if !errors.As(err, &ge) || ge.Kind != apperr.KindMalformedOutput {
			t.Fatalf("reply %q: expected malformed output, got %v", raw, err)
		}
	}
}

func TestGenerateClassifiesModelErrors(t *testing.T) {
	model := &stubModel{err: errors.New("googleapi: Error 503: 503 Service Unavailable")}
	_, err := newGateway(t, model).Generate(context.Background(), "hello")
	if apperr.Classify(err) != apperr.KindServiceOverloaded {
		t.Fatalf("expected overloaded, got %v", err)
	}
}

func TestGenerateFromAudio(t *testing.T) {
	model := &stubModel{replies: []string{`Sure: {"transcribedText":" gobar kitne ka ","detectedLanguage":"hi","responseText":"दो रुपये किलो"}`}}
	payload := audio.Payload{MIME: "audio/webm", Data: []byte{1, 2, 3}, Chunks: 1}
	out, err := newGateway(t, model).GenerateFromAudio(context.Background(), payload)
	if err != nil {
		t.Fatalf("GenerateFromAudio returned error: %v", err)
	}
	if out.Transcript != "gobar kitne ka" || out.LanguageCode != "hi" || out.ResponseText != "दो रुपये किलो" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(model.files) != 1 || model.files[0][0].MIME != "audio/webm" || len(model.files[0][0].Data) != 3 {
		t.Fatalf("audio must be attached: %+v", model.files)
	}
	if !strings.Contains(model.prompts[0], `"transcribedText"`) {
		t.Fatalf("voice contract must ask for the transcript")
	}

	if _, err := newGateway(t, &stubModel{}).GenerateFromAudio(context.Background(), audio.Payload{}); apperr.Classify(err) != apperr.KindEmptyCapture {
		t.Fatalf("empty payload should be an empty capture, got %v", err)
	}
}

func TestGenerateFromAudioMissingTranscriptIsEmpty(t *testing.T) {
	model := &stubModel{replies: []string{`{"transcribedText":null,"detectedLanguage":"en","responseText":"ok"}`}}
	out, err := newGateway(t, model).GenerateFromAudio(context.Background(), audio.Payload{Data: []byte{1}})
	if err != nil {
		t.Fatalf("GenerateFromAudio returned error: %v", err)
	}
	if out.Transcript != "" {
		t.Fatalf("expected empty transcript, got %q", out.Transcript)
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil model")
	}
}
