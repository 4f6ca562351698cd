package speech

import "github.com/Protocol-Lattice/saathi/pkg/langcode"

// VoiceSelector picks the voice for a requested language.
type VoiceSelector interface {
	Select(voices []Voice, text, lang string) Utterance
}

// PrefixSelector prefers an exact tag match, then a voice sharing the primary
// subtag, then the synthesizer default with the requested tag kept.
type PrefixSelector struct{}

func (PrefixSelector) Select(voices []Voice, text, lang string) Utterance {
	for i := range voices {
		if voices[i].Lang == lang {
			v := voices[i]
			return Utterance{Text: text, Lang: v.Lang, Voice: &v}
		}
	}
	if primary := langcode.Primary(lang); primary != "" {
		for i := range voices {
			if langcode.Primary(voices[i].Lang) == primary {
				v := voices[i]
				return Utterance{Text: text, Lang: v.Lang, Voice: &v}
			}
		}
	}
	return Utterance{Text: text, Lang: lang}
}
