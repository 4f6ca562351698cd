package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM is a lightweight model implementation useful for local testing without API calls.
// It answers in the output contract the gateway expects, echoing the last
// non-empty prompt line.
type DummyLLM struct {
	Prefix   string
	Language string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix, Language: "en"}
}

func (d *DummyLLM) Generate(_ context.Context, prompt string) (any, error) {
	last := lastLine(prompt)
	return fmt.Sprintf(`{"detectedLanguage":%q,"responseText":%q}`, d.Language, d.Prefix+" "+last), nil
}

func (d *DummyLLM) GenerateWithFiles(_ context.Context, prompt string, files []File) (any, error) {
	var transcript string
	for _, f := range files {
		if f.IsAudio() {
			transcript = fmt.Sprintf("[%d bytes of %s]", len(f.Data), NormalizeMIME(f.Name, f.MIME))
			break
		}
	}
	return fmt.Sprintf(`{"transcribedText":%q,"detectedLanguage":%q,"responseText":%q}`,
		transcript, d.Language, d.Prefix+" "+lastLine(prompt)), nil
}

func lastLine(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return candidate
		}
	}
	return "<empty prompt>"
}

var _ Agent = (*DummyLLM)(nil)
