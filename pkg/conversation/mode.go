package conversation

import "fmt"

// Mode is the high-level activity of a session.
type Mode int

const (
	Idle Mode = iota
	SendingText
	RecordingVoice
	ProcessingVoice
	// Speaking is reported only while no other mode is active.
	Speaking
)

var modeNames = [...]string{"idle", "sending_text", "recording_voice", "processing_voice", "speaking"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText renders the mode name in JSON.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses a name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	for i, name := range modeNames {
		if name == string(text) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("conversation: unknown mode %q", text)
}

// exclusive reports whether m blocks every other send or recording.
func (m Mode) exclusive() bool {
	return m == SendingText || m == RecordingVoice || m == ProcessingVoice
}

// transitions lists the legal moves between exclusive modes. Speaking is an
// overlay and never appears here.
var transitions = map[Mode][]Mode{
	Idle:            {SendingText, RecordingVoice},
	SendingText:     {Idle},
	RecordingVoice:  {ProcessingVoice, Idle},
	ProcessingVoice: {Idle},
}

func canTransition(from, to Mode) bool {
	for _, m := range transitions[from] {
		if m == to {
			return true
		}
	}
	return false
}
