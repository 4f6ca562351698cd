package models

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type countingModel struct {
	calls int
	err   error
}

func (m *countingModel) Generate(_ context.Context, prompt string) (any, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return "reply:" + prompt, nil
}

func (m *countingModel) GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error) {
	return m.Generate(ctx, prompt+"+"+files[0].Name)
}

func TestDummyLLMReturnsOutputContract(t *testing.T) {
	llm := NewDummyLLM("")
	resp, err := llm.Generate(context.Background(), "line1\nline2\n\n")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var out struct {
		DetectedLanguage string `json:"detectedLanguage"`
		ResponseText     string `json:"responseText"`
	}
	if err := json.Unmarshal([]byte(CompletionText(resp)), &out); err != nil {
		t.Fatalf("dummy output is not JSON: %v", err)
	}
	if out.DetectedLanguage != "en" || out.ResponseText != "Dummy response: line2" {
		t.Fatalf("unexpected dummy output: %+v", out)
	}
}

func TestDummyLLMDescribesAudio(t *testing.T) {
	llm := NewDummyLLM("Echo:")
	resp, err := llm.GenerateWithFiles(context.Background(), "transcribe", []File{{Name: "clip.webm", Data: []byte{1, 2, 3}}})
	if err != nil {
		t.Fatalf("GenerateWithFiles returned error: %v", err)
	}
	if !strings.Contains(CompletionText(resp), `"transcribedText":"[3 bytes of audio/webm]"`) {
		t.Fatalf("unexpected output: %s", resp)
	}
}

func TestNewLLMProviderErrorsOnUnknownProvider(t *testing.T) {
	if _, err := NewLLMProvider(context.Background(), "unknown", "model", Options{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	agent, err := NewLLMProvider(context.Background(), "Dummy", "", Options{})
	if err != nil {
		t.Fatalf("dummy provider should build: %v", err)
	}
	if _, ok := agent.(*DummyLLM); !ok {
		t.Fatalf("expected *DummyLLM, got %T", agent)
	}
}

func TestCompletionText(t *testing.T) {
	if CompletionText(nil) != "" || CompletionText("a") != "a" || CompletionText([]byte("b")) != "b" || CompletionText(42) != "42" {
		t.Fatalf("unexpected CompletionText conversions")
	}
}

func TestNormalizeMIME(t *testing.T) {
	cases := []struct{ name, mime, want string }{
		{"", "audio/webm;codecs=opus", "audio/webm"},
		{"", "AUDIO/OGG", "audio/ogg"},
		{"clip.wav", "", "audio/wav"},
		{"clip.m4a", "audio/", "audio/mp4"},
		{"", "audio/x-wav", "audio/wav"},
		{"notes.txt", "", "text/plain"},
	}
	for _, tc := range cases {
		if got := NormalizeMIME(tc.name, tc.mime); got != tc.want {
			t.Fatalf("NormalizeMIME(%q, %q) = %q, want %q", tc.name, tc.mime, got, tc.want)
		}
	}
}

func TestAudioFileName(t *testing.T) {
	if got := AudioFileName(File{Name: "voice", MIME: "audio/ogg"}); got != "voice.ogg" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := AudioFileName(File{Name: "a.wav"}); got != "a.wav" {
		t.Fatalf("existing extension must be kept, got %q", got)
	}
	if got := AudioFileName(File{MIME: "audio/unknown"}); got != "audio.webm" {
		t.Fatalf("unexpected default name %q", got)
	}
}

func TestCachedLLMServesRepeatsFromCache(t *testing.T) {
	inner := &countingModel{}
	cached := NewCachedLLM(inner, 8, time.Minute)

	for i := 0; i < 3; i++ {
		out, err := cached.Generate(context.Background(), "same")
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if out != "reply:same" {
			t.Fatalf("unexpected output %v", out)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.calls)
	}

	files := []File{{Name: "a.webm", Data: []byte{1}}}
	if _, err := cached.GenerateWithFiles(context.Background(), "same", files); err != nil {
		t.Fatalf("GenerateWithFiles returned error: %v", err)
	}
	files[0].Data = []byte{2}
	if _, err := cached.GenerateWithFiles(context.Background(), "same", files); err != nil {
		t.Fatalf("GenerateWithFiles returned error: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("different audio bytes must miss the cache, got %d calls", inner.calls)
	}
}

func TestCachedLLMDoesNotCacheErrors(t *testing.T) {
	inner := &countingModel{err: errors.New("503")}
	cached := NewCachedLLM(inner, 8, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cached.Generate(context.Background(), "p"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("errors must not be cached, got %d calls", inner.calls)
	}
}

func TestTryCreateCachedLLM(t *testing.T) {
	t.Setenv("SAATHI_LLM_CACHE_SIZE", "")
	inner := &countingModel{}
	if got := TryCreateCachedLLM(inner, 0, 0); got != Agent(inner) {
		t.Fatalf("expected passthrough without cache size")
	}
	if _, ok := TryCreateCachedLLM(inner, 4, 0).(*CachedLLM); !ok {
		t.Fatalf("expected cached wrapper")
	}
}

func TestOpenAILLMTranscribesAudioBeforeChat(t *testing.T) {
	var chatPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/audio/transcriptions":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("expected multipart upload: %v", err)
			}
			_, _ = io.WriteString(w, `{"text":" kitne mein bikta hai gobar "}`)
		case "/v1/chat/completions":
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) > 0 {
				chatPrompt = req.Messages[0].Content
			}
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	llm := NewOpenAILLM("gpt-test", Options{APIKey: "test", BaseURL: srv.URL + "/v1"})
	out, err := llm.GenerateWithFiles(context.Background(), "instructions", []File{{Name: "voice", MIME: "audio/webm", Data: []byte("abc")}})
	if err != nil {
		t.Fatalf("GenerateWithFiles returned error: %v", err)
	}
	if CompletionText(out) != "ok" {
		t.Fatalf("unexpected completion %v", out)
	}
	if !strings.Contains(chatPrompt, "Audio transcript (voice.webm):\nkitne mein bikta hai gobar") {
		t.Fatalf("transcript not inlined into prompt: %q", chatPrompt)
	}
}
