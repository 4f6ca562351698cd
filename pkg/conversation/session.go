package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/audit"
	"github.com/Protocol-Lattice/saathi/pkg/langcode"
	"github.com/Protocol-Lattice/saathi/pkg/resolver"
)

// Rejections. A rejected call changes nothing.
var (
	ErrBusy              = errors.New("conversation: another operation is in progress")
	ErrEmptyInput        = errors.New("conversation: empty input")
	ErrNotRecording      = errors.New("conversation: not recording")
	ErrSpeechUnavailable = errors.New("conversation: speech output is not configured")
)

// DefaultSpeakDelay lets the presentation settle before audio starts.
const DefaultSpeakDelay = 300 * time.Millisecond

const auditTimeout = 5 * time.Second

// TextResolver answers typed input.
type TextResolver interface {
	Resolve(ctx context.Context, input string) (resolver.Result, error)
}

// VoiceResolver transcribes and answers recorded input.
type VoiceResolver interface {
	Resolve(ctx context.Context, payload audio.Payload) (resolver.VoiceResult, error)
}

// Speaker plays answers aloud. speech.Controller implements it.
type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
	Stop()
	Speaking() bool
}

// Notification is a transient message for the user, shown next to the turns.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Observer is told about every finished exchange.
type Observer interface {
	Resolved(channel audit.Channel, source resolver.Source, lang string, elapsed time.Duration)
	Failed(channel audit.Channel, kind apperr.Kind)
}

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	Turns []Turn `json:"turns"`
	Mode  Mode   `json:"mode"`
}

// Options configure a Session. Text and Voice are required.
type Options struct {
	ID         string
	Text       TextResolver
	Voice      VoiceResolver
	Microphone audio.Microphone
	Speaker    Speaker
	Audit      audit.Log
	Notifier   Notifier
	Observer   Observer
	OnChange   func(Snapshot)
	// SpeakDelay defaults to DefaultSpeakDelay; a negative value speaks at once.
	SpeakDelay time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Session is one conversation. All methods are safe for concurrent use;
// conflicting operations are rejected by the mode guard.
type Session struct {
	id         string
	text       TextResolver
	voice      VoiceResolver
	mic        audio.Microphone
	speaker    Speaker
	auditLog   audit.Log
	notifier   Notifier
	observer   Observer
	onChange   func(Snapshot)
	speakDelay time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	turns     []*Turn
	mode      Mode
	progress  *Turn
	recording *audio.Recording
	speech    *time.Timer
	speechGen uint64

	// pubMu is taken before mu and keeps snapshots in delivery order.
	pubMu sync.Mutex
}

// New builds a Session.
func New(opts Options) (*Session, error) {
	if opts.Text == nil || opts.Voice == nil {
		return nil, errors.New("conversation: text and voice resolvers are required")
	}
	s := &Session{
		id:         opts.ID,
		text:       opts.Text,
		voice:      opts.Voice,
		mic:        opts.Microphone,
		speaker:    opts.Speaker,
		auditLog:   opts.Audit,
		notifier:   opts.Notifier,
		observer:   opts.Observer,
		onChange:   opts.OnChange,
		speakDelay: opts.SpeakDelay,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.speakDelay == 0 {
		s.speakDelay = DefaultSpeakDelay
	} else if s.speakDelay < 0 {
		s.speakDelay = 0
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SubmitText answers typed input. It blocks until the answer or error turn is
// in place and returns that turn. Only ErrEmptyInput and ErrBusy are returned
// as errors; resolve failures become error turns.
func (s *Session) SubmitText(ctx context.Context, text string) (Turn, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	if !canTransition(s.mode, SendingText) {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	s.cancelSpeechLocked()
	s.appendLocked(s.newTurn(SenderUser, input, ""))
	placeholder := s.newTurn(SenderAssistant, PlaceholderText, langcode.Detecting)
	placeholder.IsGenerating = true
	s.appendLocked(placeholder)
	s.mode = SendingText
	s.mu.Unlock()
	s.publish()

	start := s.now()
	// In-flight generations are never cancelled.
	res, err := s.text.Resolve(context.WithoutCancel(ctx), input)

	s.mu.Lock()
	placeholder.IsGenerating = false
	if err != nil {
		s.failTurnLocked(placeholder, err, false)
	} else {
		lang := displayLang(res.LanguageCode)
		placeholder.Text = res.ResponseText
		placeholder.OriginalText = res.OriginalText
		placeholder.LanguageCode = lang
		s.scheduleSpeechLocked(res.ResponseText, lang)
	}
	s.mode = Idle
	out := *placeholder
	s.mu.Unlock()

	if err != nil {
		s.reportFailure(audit.ChannelText, err)
	} else {
		s.reportSuccess(audit.ChannelText, input, res, s.now().Sub(start))
	}
	s.publish()
	return out, nil
}

// StartRecording acquires the microphone and enters RecordingVoice. Capture
// failures are returned (and notified) without adding a turn.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if !canTransition(s.mode, RecordingVoice) {
		s.mu.Unlock()
		return ErrBusy
	}
	s.cancelSpeechLocked()
	// Reserve the mode while the microphone is acquired.
	s.mode = RecordingVoice
	s.mu.Unlock()

	rec, err := s.acquire(ctx)

	s.mu.Lock()
	if err != nil {
		s.mode = Idle
		s.mu.Unlock()
		s.logger.Warn("microphone acquisition failed", zap.Error(err))
		s.reportFailure(audit.ChannelVoice, err)
		return err
	}
	s.recording = rec
	s.progress = s.newProgress(RecordingText)
	s.appendLocked(s.progress)
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Session) acquire(ctx context.Context) (*audio.Recording, error) {
	if s.mic == nil {
		return nil, fmt.Errorf("no microphone configured: %w", apperr.ErrNoDevice)
	}
	return audio.Start(ctx, s.mic, s.logger)
}

// StopRecording finalizes the capture and answers it. It returns the assistant
// turn, or the error turn when capture or resolution failed; a failed attempt
// leaves no partial exchange behind.
func (s *Session) StopRecording(ctx context.Context) (Turn, error) {
	s.mu.Lock()
	if s.mode != RecordingVoice || s.recording == nil {
		s.mu.Unlock()
		return Turn{}, ErrNotRecording
	}
	rec := s.recording
	s.recording = nil
	s.mu.Unlock()

	s.logger.Debug("stopping recording", zap.Int("chunks", rec.Chunks()), zap.String("mime", rec.MIMEType()))
	payload, err := rec.Finish()

	s.mu.Lock()
	s.removeLocked(s.progress)
	s.progress = nil
	if err != nil {
		errTurn := s.newTurn(SenderSystem, "", "")
		s.failTurnLocked(errTurn, err, true)
		s.appendLocked(errTurn)
		s.mode = Idle
		out := *errTurn
		s.mu.Unlock()
		s.reportFailure(audit.ChannelVoice, err)
		s.publish()
		return out, nil
	}
	processing := s.newProgress(ProcessingText)
	processing.IsGenerating = true
	s.appendLocked(processing)
	s.progress = processing
	s.mode = ProcessingVoice
	mark := len(s.turns)
	s.mu.Unlock()
	s.publish()

	start := s.now()
	res, err := s.voice.Resolve(context.WithoutCancel(ctx), payload)

	s.mu.Lock()
	var out Turn
	if err != nil {
		s.rollbackLocked(mark)
		if s.progress != nil && s.containsLocked(s.progress) {
			s.failTurnLocked(s.progress, err, true)
			out = *s.progress
		} else {
			errTurn := s.newTurn(SenderSystem, "", "")
			s.failTurnLocked(errTurn, err, true)
			s.appendLocked(errTurn)
			out = *errTurn
		}
	} else {
		s.removeLocked(s.progress)
		lang := displayLang(res.LanguageCode)
		transcript := res.Transcript
		if transcript == "" {
			transcript = NoSpeechText
		}
		s.appendLocked(s.newTurn(SenderUser, transcript, langcode.Heard(lang)))
		reply := s.newTurn(SenderAssistant, res.ResponseText, lang)
		reply.OriginalText = res.OriginalText
		s.appendLocked(reply)
		s.scheduleSpeechLocked(res.ResponseText, lang)
		out = *reply
	}
	s.progress = nil
	s.mode = Idle
	s.mu.Unlock()

	if err != nil {
		s.reportFailure(audit.ChannelVoice, err)
	} else {
		s.reportSuccess(audit.ChannelVoice, res.Transcript, res.Result, s.now().Sub(start))
	}
	s.publish()
	return out, nil
}

// Speak plays text now, replacing any current or scheduled utterance.
func (s *Session) Speak(ctx context.Context, text, lang string) error {
	if s.speaker == nil {
		return ErrSpeechUnavailable
	}
	s.mu.Lock()
	s.speechGen++
	if s.speech != nil {
		s.speech.Stop()
		s.speech = nil
	}
	err := s.speaker.Speak(ctx, text, lang)
	s.mu.Unlock()
	s.publish()
	return err
}

// StopSpeaking cancels current and scheduled playback. It is idempotent.
func (s *Session) StopSpeaking() {
	s.mu.Lock()
	s.cancelSpeechLocked()
	s.mu.Unlock()
	s.publish()
}

// scheduleSpeechLocked plays an answer after the speak delay unless the
// language is untrusted or another operation cancels it first.
func (s *Session) scheduleSpeechLocked(text, lang string) {
	if s.speaker == nil || text == "" || lang == langcode.Unknown {
		return
	}
	s.cancelSpeechLocked()
	gen := s.speechGen
	s.speech = time.AfterFunc(s.speakDelay, func() {
		s.mu.Lock()
		if gen != s.speechGen {
			s.mu.Unlock()
			return
		}
		s.speech = nil
		if err := s.speaker.Speak(context.Background(), text, lang); err != nil {
			s.logger.Debug("scheduled speech not started", zap.Error(err))
		}
		s.mu.Unlock()
		s.publish()
	})
}

func (s *Session) cancelSpeechLocked() {
	s.speechGen++
	if s.speech != nil {
		s.speech.Stop()
		s.speech = nil
	}
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

// Mode returns the current interaction mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeLocked()
}

func (s *Session) modeLocked() Mode {
	if s.mode == Idle && s.speaker != nil && s.speaker.Speaking() {
		return Speaking
	}
	return s.mode
}

// Turns returns a copy of the turn list in order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnsLocked()
}

func (s *Session) turnsLocked() []Turn {
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = *t
	}
	return out
}

// Last returns the most recent turn.
func (s *Session) Last() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return *s.turns[len(s.turns)-1], true
}

// Snapshot returns turns and mode taken together.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Turns: s.turnsLocked(), Mode: s.modeLocked()}
}

// Publish sends the current snapshot to OnChange. The session calls it after
// every state change; speech hooks call it when playback starts or ends.
func (s *Session) Publish() { s.publish() }

func (s *Session) publish() {
	if s.onChange == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.onChange(s.Snapshot())
}

func (s *Session) newProgress(text string) *Turn {
	t := s.newTurn(SenderSystem, text, "")
	t.Progress = true
	return t
}

func (s *Session) appendLocked(t *Turn) {
	s.turns = append(s.turns, t)
}

func (s *Session) removeLocked(target *Turn) {
	if target == nil {
		return
	}
	for i, t := range s.turns {
		if t == target {
			s.turns = append(s.turns[:i], s.turns[i+1:]...)
			return
		}
	}
}

func (s *Session) containsLocked(target *Turn) bool {
	for _, t := range s.turns {
		if t == target {
			return true
		}
	}
	return false
}

// rollbackLocked drops turns appended after mark.
func (s *Session) rollbackLocked(mark int) {
	if mark < len(s.turns) {
		for i := mark; i < len(s.turns); i++ {
			s.turns[i] = nil
		}
		s.turns = s.turns[:mark]
	}
}

func (s *Session) failTurnLocked(t *Turn, err error, voice bool) {
	t.Sender = SenderSystem
	t.Text = errorText(err, voice)
	t.LanguageCode = langcode.ErrorTag
	t.IsGenerating = false
	t.IsError = true
	t.Progress = false
}

func (s *Session) reportFailure(channel audit.Channel, err error) {
	kind := apperr.Classify(err)
	if s.observer != nil {
		s.observer.Failed(channel, kind)
	}
	if s.notifier != nil {
		s.notifier.Notify(Notification{Title: notificationTitle(kind), Message: apperr.UserMessage(err), Error: true})
	}
}

func (s *Session) reportSuccess(channel audit.Channel, input string, res resolver.Result, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.Resolved(channel, res.Source, res.LanguageCode, elapsed)
	}
	if s.auditLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	err := s.auditLog.Append(ctx, audit.Entry{
		SessionID:    s.id,
		Channel:      channel,
		Input:        input,
		LanguageCode: res.LanguageCode,
		Response:     res.ResponseText,
		OriginalText: res.OriginalText,
		Source:       string(res.Source),
	})
	if err != nil {
		s.logger.Warn("audit append failed", zap.Error(err))
	}
}

func displayLang(code string) string {
	if langcode.Valid(code) {
		return code
	}
	return langcode.Unknown
}

func errorText(err error, voice bool) string {
	switch apperr.Classify(err) {
	case apperr.KindUnknown, apperr.KindMalformedOutput:
		if voice {
			return fmt.Sprintf("Sorry, I encountered an error processing your voice: %v", err)
		}
	}
	return apperr.UserMessage(err)
}

func notificationTitle(kind apperr.Kind) string {
	switch kind {
	case apperr.KindInputCapture:
		return "Microphone Error"
	case apperr.KindEmptyCapture:
		return "Recording Error"
	default:
		return "Error"
	}
}
