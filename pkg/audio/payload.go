// Package audio captures microphone input and encodes it for transcription.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Payload is one finished recording.
type Payload struct {
	MIME   string
	Data   []byte
	Chunks int
}

// DataURI encodes the payload as data:<mime>;base64,<data>.
func (p Payload) DataURI() string {
	mime := p.MIME
	if mime == "" {
		mime = DefaultMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Empty reports whether the payload carries no audio.
func (p Payload) Empty() bool { return len(p.Data) == 0 }

var errNotDataURI = errors.New("audio: not a base64 data URI")

// ParseDataURI decodes a base64 data URI. MIME parameters such as codecs are kept.
func ParseDataURI(uri string) (Payload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return Payload{}, errNotDataURI
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return Payload{}, errNotDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return Payload{}, errNotDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Payload{}, fmt.Errorf("audio: decode data URI: %w", err)
	}
	if mime == "" {
		mime = DefaultMIME
	}
	chunks := 0
	if len(raw) > 0 {
		chunks = 1
	}
	return Payload{MIME: mime, Data: raw, Chunks: chunks}, nil
}
