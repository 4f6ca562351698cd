package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
)

const chunkSize = 32 << 10

// Recording owns one acquired stream and collects its chunks until Finish.
type Recording struct {
	stream Stream
	logger *zap.Logger

	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	done    chan struct{}

	finishOnce sync.Once
	payload    Payload
	finishErr  error
}

// Start acquires mic and begins collecting audio on a background goroutine.
// Acquisition errors are returned unchanged.
func Start(ctx context.Context, mic Microphone, logger *zap.Logger) (*Recording, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stream, err := mic.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	r := &Recording{stream: stream, logger: logger, done: make(chan struct{})}
	go r.capture()
	return r, nil
}

func (r *Recording) capture() {
	defer close(r.done)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// MIMEType reports the stream's encoding.
func (r *Recording) MIMEType() string { return r.stream.MIMEType() }

// Chunks reports how many chunks have been captured so far.
func (r *Recording) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Finish releases the stream, waits for the collector and joins the chunks.
// Release failures are logged only. Zero chunks yield apperr.ErrEmptyCapture.
// Finish is idempotent.
func (r *Recording) Finish() (Payload, error) {
	r.finishOnce.Do(func() {
		if err := r.stream.Close(); err != nil {
			r.logger.Warn("releasing audio stream failed", zap.Error(err))
		}
		<-r.done

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.readErr != nil {
			r.logger.Warn("audio capture ended with error", zap.Error(r.readErr), zap.Int("chunks", len(r.chunks)))
		}
		if len(r.chunks) == 0 {
			r.finishErr = apperr.ErrEmptyCapture
			return
		}
		r.payload = Payload{
			MIME:   r.stream.MIMEType(),
			Data:   bytes.Join(r.chunks, nil),
			Chunks: len(r.chunks),
		}
	})
	return r.payload, r.finishErr
}
