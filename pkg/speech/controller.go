package speech

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Controller serializes playback: a new Speak cancels the previous one, and
// speaking is deferred until the synthesizer has voices.
type Controller struct {
	synth    Synthesizer
	selector VoiceSelector
	hooks    Hooks
	logger   *zap.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	pendingKey string
	speaking   bool
	wg         sync.WaitGroup
}

// NewController returns a controller over synth. A nil selector uses PrefixSelector.
func NewController(synth Synthesizer, selector VoiceSelector, hooks Hooks, logger *zap.Logger) *Controller {
	if selector == nil {
		selector = PrefixSelector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{synth: synth, selector: selector, hooks: hooks, logger: logger}
}

// Speak starts playing text in lang after cancelling any current utterance.
// It returns before playback begins. ctx values are kept but its cancellation
// is not; use Stop.
func (c *Controller) Speak(ctx context.Context, text, lang string) error {
	key := lang + "\x00" + text

	c.mu.Lock()
	if c.pendingKey != "" && c.pendingKey == key {
		c.mu.Unlock()
		return ErrSpeakPending
	}
	c.stopLocked()
	c.generation++
	gen := c.generation
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.pendingKey = key
	c.wg.Add(1)
	c.mu.Unlock()

	go c.play(sctx, gen, text, lang)
	return nil
}

func (c *Controller) play(ctx context.Context, gen uint64, text, lang string) {
	defer c.wg.Done()

	select {
	case <-c.synth.VoicesReady():
	case <-ctx.Done():
		c.finish(gen, Utterance{Text: text, Lang: lang}, ErrInterrupted)
		return
	}

	u := c.selector.Select(c.synth.Voices(), text, lang)
	if u.Voice == nil {
		c.logger.Debug("no voice for language, using default", zap.String("lang", lang))
	}

	c.mu.Lock()
	if gen != c.generation || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.pendingKey = ""
	c.speaking = true
	c.mu.Unlock()

	if c.hooks.OnStart != nil {
		c.hooks.OnStart(u)
	}
	c.finish(gen, u, c.synth.Speak(ctx, u))
}

func (c *Controller) finish(gen uint64, u Utterance, err error) {
	c.mu.Lock()
	if gen == c.generation {
		c.speaking = false
		c.pendingKey = ""
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	switch {
	case err == nil:
		if c.hooks.OnEnd != nil {
			c.hooks.OnEnd(u)
		}
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		c.logger.Debug("speech interrupted")
	default:
		c.logger.Warn("speech failed", zap.Error(err), zap.String("lang", u.Lang))
		if c.hooks.OnError != nil {
			c.hooks.OnError(err)
		}
	}
}

// Stop cancels current or pending playback. It is safe to call at any time.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.speaking = false
	c.pendingKey = ""
}

// Speaking reports whether an utterance is playing.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Pending reports whether an utterance is waiting for voices.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingKey != ""
}

// Close stops playback and waits for background work to exit.
func (c *Controller) Close() {
	c.Stop()
	c.wg.Wait()
}
