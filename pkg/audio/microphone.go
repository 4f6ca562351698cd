package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/models"
)

// DefaultMIME is used when a source does not report its own type.
const DefaultMIME = "audio/webm"

// Stream is an acquired capture source. Close releases the device and must
// unblock a pending Read.
type Stream interface {
	io.ReadCloser
	MIMEType() string
}

// Microphone hands out capture streams. Acquire fails with one of
// apperr.ErrPermissionDenied, apperr.ErrNoDevice or apperr.ErrDeviceBusy.
type Microphone interface {
	Acquire(ctx context.Context) (Stream, error)
}

// bufferedStream serves pre-recorded bytes. Close marks the source released
// but leaves the remaining bytes readable.
type bufferedStream struct {
	*bytes.Reader
	mime string
}

func (b *bufferedStream) Close() error     { return nil }
func (b *bufferedStream) MIMEType() string { return b.mime }

// ReaderMicrophone replays a fixed recording on every Acquire.
type ReaderMicrophone struct {
	Data []byte
	MIME string
	// Err, when set, is returned by Acquire instead of a stream.
	Err error
}

func (m *ReaderMicrophone) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	mime := m.MIME
	if mime == "" {
		mime = DefaultMIME
	}
	return &bufferedStream{Reader: bytes.NewReader(m.Data), mime: mime}, nil
}

// FileMicrophone reads a recorded file, typing it by extension.
type FileMicrophone struct {
	Path string
}

func (m *FileMicrophone) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fileError(m.Path, err)
	}
	mime := models.NormalizeMIME(filepath.Base(m.Path), "")
	if mime == "" {
		mime = DefaultMIME
	}
	return &bufferedStream{Reader: bytes.NewReader(data), mime: mime}, nil
}

func fileError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, apperr.ErrNoDevice)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", path, apperr.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %v: %w", path, err, apperr.ErrDeviceBusy)
	}
}

// CommandMicrophone captures from an external recorder that writes encoded
// audio to stdout, for example `arecord -q -f cd -t wav -`.
type CommandMicrophone struct {
	Command string
	Args    []string
	MIME    string

	mu     sync.Mutex
	active bool
}

func (m *CommandMicrophone) Acquire(ctx context.Context) (Stream, error) {
	path, err := exec.LookPath(m.Command)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Command, apperr.ErrNoDevice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil, apperr.ErrDeviceBusy
	}
	// The recorder outlives Acquire's ctx; Close stops it.
	cmd := exec.Command(path, m.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", m.Command, err, apperr.ErrDeviceBusy)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%s: %w", m.Command, apperr.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("%s: %v: %w", m.Command, err, apperr.ErrDeviceBusy)
	}
	m.active = true
	mime := m.MIME
	if mime == "" {
		mime = "audio/wav"
	}
	return &commandStream{ReadCloser: stdout, cmd: cmd, mime: mime, release: m.release, drained: make(chan struct{})}, nil
}

func (m *CommandMicrophone) release() {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

type commandStream struct {
	io.ReadCloser
	cmd     *exec.Cmd
	mime    string
	release func()

	drainOnce sync.Once
	drained   chan struct{}
	closeOnce sync.Once
	err       error
}

func (s *commandStream) MIMEType() string { return s.mime }

func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if err != nil {
		s.drainOnce.Do(func() { close(s.drained) })
	}
	return n, err
}

// Close interrupts the recorder and lets the reader drain what it flushed
// before reaping the process.
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		defer s.release()
		if s.cmd.Process != nil {
			if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
				_ = s.cmd.Process.Kill()
			}
		}
		select {
		case <-s.drained:
		case <-time.After(drainTimeout):
			_ = s.cmd.Process.Kill()
		}
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.err = err
			}
		}
	})
	return s.err
}

const drainTimeout = 2 * time.Second

// SwitchMicrophone delegates to Default unless a one-shot source was queued
// with Next. Uploaded and file-based recordings use it to reach a session
// whose microphone is fixed at construction.
type SwitchMicrophone struct {
	Default Microphone

	mu   sync.Mutex
	next Microphone
}

// Next makes m the source for the following Acquire only.
func (s *SwitchMicrophone) Next(m Microphone) {
	s.mu.Lock()
	s.next = m
	s.mu.Unlock()
}

// Reset drops a queued source that was never acquired.
func (s *SwitchMicrophone) Reset() {
	s.mu.Lock()
	s.next = nil
	s.mu.Unlock()
}

func (s *SwitchMicrophone) Acquire(ctx context.Context) (Stream, error) {
	s.mu.Lock()
	mic := s.next
	s.next = nil
	s.mu.Unlock()
	if mic == nil {
		mic = s.Default
	}
	if mic == nil {
		return nil, fmt.Errorf("no capture source: %w", apperr.ErrNoDevice)
	}
	return mic.Acquire(ctx)
}
