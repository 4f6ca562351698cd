package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Protocol-Lattice/saathi/pkg/identity"
	"github.com/Protocol-Lattice/saathi/pkg/tools"
)

// DefaultPersona opens every instruction block.
const DefaultPersona = "You are a multilingual assistant named S.A.A.T.H.I. Your primary purpose is to help users with farming-related queries, especially regarding agri-waste."

var instructions = template.Must(template.New("instructions").Parse(`{{.Persona}}

{{if .Voice}}An audio recording of the user is attached. First transcribe it exactly as spoken.{{else}}Analyze the following text input:
<input>
{{.Input}}
</input>{{end}}

1. Identify the primary language {{if .Voice}}spoken in the recording{{else}}of the input{{end}} and give its code (for example 'en', 'es', 'hi', 'bn', or 'en-US').
2. If the user asks about your identity, do not write a new answer. Reply with the predefined identity text for the detected language, verbatim:
{{- range .Identities}}
   - {{.Code}}: "{{.Canonical}}"
{{- end}}
   For any other language use the {{.DefaultCode}} text and set detectedLanguage to {{.DefaultCode}}.
{{- if .Tools}}
3. Only if the question needs current, real-time information (market prices, weather forecasts, news), call a tool and summarize its result in your answer. Never use a tool for general knowledge.
{{.Tools}}   Call a tool by replying with a single line and nothing else. You get one tool call per question.
{{- end}}
{{if .Tools}}4{{else}}3{{end}}. Otherwise answer helpfully in the language you identified.

Reply with one JSON object and nothing else:
{{.Contract}}
`))

type promptData struct {
	Persona     string
	Voice       bool
	Input       string
	Identities  []identity.Entry
	DefaultCode string
	Tools       string
	Contract    string
}

const (
	textContract  = `{"detectedLanguage": "<language code>", "responseText": "<your answer>"}`
	voiceContract = `{"transcribedText": "<what was said>", "detectedLanguage": "<language code>", "responseText": "<your answer>"}`
)

func (g *Gateway) render(input string, voice bool) (string, error) {
	data := promptData{
		Persona:     g.persona,
		Voice:       voice,
		Input:       escapePromptContent(input),
		Identities:  g.table.Entries(),
		DefaultCode: g.table.DefaultCode(),
		Tools:       renderTools(g.catalog.Specs()),
		Contract:    textContract,
	}
	if voice {
		data.Contract = voiceContract
	}
	var sb strings.Builder
	if err := instructions.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render instructions: %w", err)
	}
	return sb.String(), nil
}

// renderTools formats the available tool specs into a prompt-friendly block.
func renderTools(specs []tools.ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("   Available tools:\n")
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("   - %s: %s\n", spec.Name, spec.Description))
		if len(spec.InputSchema) > 0 {
			if schemaJSON, err := json.Marshal(spec.InputSchema); err == nil {
				sb.WriteString("     Input schema: ")
				sb.Write(schemaJSON)
				sb.WriteString("\n")
			}
		}
	}
	sb.WriteString("   Invoke a tool with: `tool:<name> <json arguments>`\n")
	return sb.String()
}

func followUp(prompt, tool, result string) string {
	return prompt + "\n\nTool result (" + tool + "):\n" + escapePromptContent(strings.TrimSpace(result)) +
		"\n\nUse this result to answer. Do not call another tool. Reply with the JSON object only."
}

func escapePromptContent(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
