package gateway

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

type toolCall struct {
	Name      string
	Arguments map[string]any
}

// parseToolCall recognises a reply whose first non-empty line is
// `tool:<name> <json arguments>`.
func parseToolCall(reply string) (toolCall, bool) {
	line := strings.TrimSpace(stripFences(reply))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if !strings.HasPrefix(strings.ToLower(line), "tool:") {
		return toolCall{}, false
	}
	payload := strings.TrimSpace(line[len("tool:"):])
	name, args := splitCommand(payload)
	return toolCall{Name: name, Arguments: parseToolArguments(args)}, true
}

func splitCommand(payload string) (name string, args string) {
	parts := strings.Fields(payload)
	if len(parts) == 0 {
		return "", ""
	}
	name = parts[0]
	if len(payload) > len(name) {
		args = strings.TrimSpace(payload[len(name):])
	}
	return name, args
}

func parseToolArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var payload map[string]any
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return payload
		}
	}
	return map[string]any{"input": raw, "query": raw}
}

// reply is the structured output contract.
type reply struct {
	DetectedLanguage string
	ResponseText     string
	TranscribedText  string
}

// parseReply extracts the outermost JSON object from raw and reads the
// contract fields. ok is false when there is no object or no responseText.
func parseReply(raw string) (reply, bool) {
	body := stripFences(raw)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return reply{}, false
	}
	obj := body[start : end+1]
	if !gjson.Valid(obj) {
		return reply{}, false
	}
	fields := gjson.GetMany(obj, "responseText", "detectedLanguage", "transcribedText")
	if fields[0].Type != gjson.String {
		return reply{}, false
	}
	out := reply{ResponseText: fields[0].String()}
	if fields[1].Type == gjson.String {
		out.DetectedLanguage = strings.TrimSpace(fields[1].String())
	}
	if fields[2].Type == gjson.String {
		out.TranscribedText = strings.TrimSpace(fields[2].String())
	}
	return out, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the info string, e.g. ```json
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
