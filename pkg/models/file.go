package models

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var audioExt = map[string]string{
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".flac": "audio/flac",
}

// NormalizeMIME strips parameters such as ";codecs=opus", lower-cases the type
// and falls back to the file extension when m is empty or malformed.
func NormalizeMIME(name, m string) string {
	raw := strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if raw != "" && strings.Contains(raw, "/") && !strings.HasSuffix(raw, "/") {
		if raw == "audio/x-wav" || raw == "audio/wave" {
			return "audio/wav"
		}
		return raw
	}
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := audioExt[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return NormalizeMIME("", mt)
	}
	return raw
}

// IsAudio reports whether the attachment carries audio.
func (f File) IsAudio() bool {
	return strings.HasPrefix(NormalizeMIME(f.Name, f.MIME), "audio/")
}

// AudioFileName returns a file name whose extension matches the MIME type,
// which transcription endpoints use to pick a decoder.
func AudioFileName(f File) string {
	if ext := filepath.Ext(f.Name); ext != "" {
		return f.Name
	}
	mt := NormalizeMIME(f.Name, f.MIME)
	for ext, candidate := range map[string]string{".webm": "audio/webm", ".ogg": "audio/ogg", ".mp3": "audio/mpeg", ".m4a": "audio/mp4", ".wav": "audio/wav", ".flac": "audio/flac"} {
		if candidate == mt {
			return nameOr(f.Name) + ext
		}
	}
	return nameOr(f.Name) + ".webm"
}

func nameOr(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "audio"
}

// inlineTextFiles appends non-audio text attachments to the prompt. Binary
// attachments are described, not inlined.
func inlineTextFiles(prompt string, files []File) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	for _, f := range files {
		if f.IsAudio() {
			continue
		}
		mt := NormalizeMIME(f.Name, f.MIME)
		if strings.HasPrefix(mt, "text/") || mt == "application/json" {
			fmt.Fprintf(&sb, "\n\nAttachment %s (%s):\n%s", nameOr(f.Name), mt, f.Data)
			continue
		}
		fmt.Fprintf(&sb, "\n\nAttachment %s [%d bytes of %s]", nameOr(f.Name), len(f.Data), mt)
	}
	return sb.String()
}
