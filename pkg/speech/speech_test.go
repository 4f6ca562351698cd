package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type recorder struct {
	mu     sync.Mutex
	starts []Utterance
	ends   []Utterance
	errs   []error
	ended  chan struct{}
}

func newRecorder() *recorder { return &recorder{ended: make(chan struct{}, 16)} }

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnStart: func(u Utterance) { r.mu.Lock(); r.starts = append(r.starts, u); r.mu.Unlock() },
		OnEnd: func(u Utterance) {
			r.mu.Lock()
			r.ends = append(r.ends, u)
			r.mu.Unlock()
			r.ended <- struct{}{}
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.ended <- struct{}{}
		},
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("playback did not finish")
	}
}

func TestPrefixSelector(t *testing.T) {
	voices := []Voice{{ID: "1", Lang: "en-US"}, {ID: "2", Lang: "hi-IN"}, {ID: "3", Lang: "en-GB"}}
	sel := PrefixSelector{}

	u := sel.Select(voices, "hi", "en-GB")
	require.NotNil(t, u.Voice)
	assert.Equal(t, "3", u.Voice.ID)

	u = sel.Select(voices, "hi", "hi")
	require.NotNil(t, u.Voice)
	assert.Equal(t, "2", u.Voice.ID)
	assert.Equal(t, "hi-IN", u.Lang)

	u = sel.Select(voices, "hi", "xx-ZZ")
	assert.Nil(t, u.Voice)
	assert.Equal(t, "xx-ZZ", u.Lang)
}

func TestSpeakWithoutDedicatedVoiceUsesDefault(t *testing.T) {
	synth := NewSilent(Voice{ID: "en", Lang: "en-US"})
	rec := newRecorder()
	c := NewController(synth, nil, rec.hooks(), nil)
	defer c.Close()

	require.NoError(t, c.Speak(context.Background(), "hello", "xx-ZZ"))
	rec.wait(t)

	spoken := synth.Spoken()
	require.Len(t, spoken, 1)
	assert.Nil(t, spoken[0].Voice)
	assert.Equal(t, "xx-ZZ", spoken[0].Lang)
	assert.Equal(t, "hello", spoken[0].Text)
	assert.Empty(t, rec.errs)
}

func TestSpeakDefersUntilVoicesLoad(t *testing.T) {
	synth := NewSilentLoading()
	rec := newRecorder()
	c := NewController(synth, nil, rec.hooks(), nil)
	defer c.Close()

	require.NoError(t, c.Speak(context.Background(), "namaste", "hi"))
	assert.True(t, c.Pending())
	assert.ErrorIs(t, c.Speak(context.Background(), "namaste", "hi"), ErrSpeakPending)
	assert.Empty(t, synth.Spoken())

	synth.MarkReady(Voice{ID: "hi", Lang: "hi-IN"})
	rec.wait(t)

	spoken := synth.Spoken()
	require.Len(t, spoken, 1)
	require.NotNil(t, spoken[0].Voice)
	assert.Equal(t, "hi-IN", spoken[0].Lang)
	assert.False(t, c.Pending())
}

// blockingSynth holds "first" until cancelled and finishes anything else at once.
type blockingSynth struct {
	*Silent
	interrupted chan struct{}
}

func (b blockingSynth) Speak(ctx context.Context, u Utterance) error {
	if u.Text != "first" {
		return nil
	}
	<-ctx.Done()
	close(b.interrupted)
	return ErrInterrupted
}

func TestNewSpeakCancelsPrevious(t *testing.T) {
	synth := blockingSynth{Silent: NewSilent(Voice{ID: "en", Lang: "en"}), interrupted: make(chan struct{})}
	rec := newRecorder()
	c := NewController(synth, nil, rec.hooks(), nil)
	defer c.Close()

	require.NoError(t, c.Speak(context.Background(), "first", "en"))
	require.Eventually(t, c.Speaking, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Speak(context.Background(), "second", "en"))
	rec.wait(t)
	<-synth.interrupted

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.ends, 1)
	assert.Equal(t, "second", rec.ends[0].Text)
	assert.Empty(t, rec.errs, "interruptions must not be reported as errors")
}

func TestStopIsIdempotent(t *testing.T) {
	synth := NewSilent(Voice{ID: "en", Lang: "en"})
	synth.Duration = time.Hour
	c := NewController(synth, nil, Hooks{}, nil)

	c.Stop()
	require.NoError(t, c.Speak(context.Background(), "long answer", "en"))
	require.Eventually(t, c.Speaking, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
	assert.False(t, c.Speaking())
	c.Close()
}

type failingSynth struct{ *Silent }

func (f failingSynth) Speak(context.Context, Utterance) error { return errors.New("audio device lost") }

func TestSpeakErrorsReachHook(t *testing.T) {
	rec := newRecorder()
	c := NewController(failingSynth{NewSilent()}, nil, rec.hooks(), nil)
	defer c.Close()

	require.NoError(t, c.Speak(context.Background(), "x", "en"))
	rec.wait(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0].Error(), "audio device lost")
}

type capturePlayer struct {
	data   []byte
	format string
}

func (p *capturePlayer) Play(_ context.Context, r io.Reader, format string) error {
	b, err := io.ReadAll(r)
	p.data, p.format = b, format
	return err
}

func TestOpenAISynthesizerStreamsToPlayer(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	player := &capturePlayer{}
	synth := NewOpenAISynthesizer(OpenAIOptions{APIKey: "test", BaseURL: srv.URL + "/v1"}, player)
	require.Len(t, synth.Voices(), 3)

	err := synth.Speak(context.Background(), Utterance{Text: "नमस्ते", Lang: "hi", Voice: &Voice{ID: "alloy"}})
	require.NoError(t, err)
	assert.Equal(t, "ID3-mp3-bytes", string(player.data))
	assert.Equal(t, "mp3", player.format)
	assert.True(t, strings.Contains(body, `"voice":"alloy"`), body)
}
