// Package apperr classifies failures by their surfaced cause and maps them to
// the messages shown to the user.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the surfaced cause of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindServiceOverloaded
	KindAuthentication
	KindToolExecution
	KindMalformedOutput
	KindInputCapture
	KindEmptyCapture
)

func (k Kind) String() string {
	switch k {
	case KindServiceOverloaded:
		return "service_overloaded"
	case KindAuthentication:
		return "authentication_failure"
	case KindToolExecution:
		return "tool_execution_failure"
	case KindMalformedOutput:
		return "malformed_output"
	case KindInputCapture:
		return "input_capture_failure"
	case KindEmptyCapture:
		return "empty_capture"
	default:
		return "unknown"
	}
}

// Microphone and capture failures.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no microphone found")
	ErrDeviceBusy       = errors.New("microphone is busy or unreadable")
	ErrEmptyCapture     = errors.New("no audio recorded")
)

// GenerationError is returned by resolvers when no answer could be produced.
type GenerationError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Wrap builds a GenerationError for op, classifying err when kind is KindUnknown.
// An err that already is a GenerationError is returned unchanged.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	if kind == KindUnknown {
		kind = classifyMessage(err.Error())
	}
	return &GenerationError{Kind: kind, Op: op, Err: err}
}

// Malformed reports a generator reply without a usable structure.
func Malformed(op, format string, args ...any) error {
	return &GenerationError{Kind: KindMalformedOutput, Op: op, Err: fmt.Errorf(format, args...)}
}

// Classify returns the surfaced cause of err. Typed errors win; otherwise the
// message text is matched, since upstream capabilities expose no codes.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ge *GenerationError
	if errors.As(err, &ge) && ge.Kind != KindUnknown {
		return ge.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyCapture):
		return KindEmptyCapture
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoDevice), errors.Is(err, ErrDeviceBusy):
		return KindInputCapture
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "503"),
		strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "overloaded"):
		return KindServiceOverloaded
	case strings.Contains(msg, "API key not valid"),
		strings.Contains(msg, "Could not refresh access token"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "401 unauthorized"):
		return KindAuthentication
	case strings.Contains(msg, "PermissionDenied"),
		strings.Contains(lower, "failed to call tool"):
		return KindToolExecution
	default:
		return KindUnknown
	}
}

// UserMessage is the text placed in the error turn for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindServiceOverloaded:
		return "The AI service is temporarily overloaded. Please try again shortly."
	case KindAuthentication:
		return "There was an authentication issue with the AI service. Please check configuration."
	case KindToolExecution:
		return "There was an issue using an internal tool to fulfill your request."
	case KindEmptyCapture:
		return "No audio was recorded. Please try again."
	case KindInputCapture:
		return captureMessage(err)
	default:
		return fmt.Sprintf("Sorry, I encountered an error: %v", err)
	}
}

func captureMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone permission denied. Please allow access in your settings."
	case errors.Is(err, ErrNoDevice):
		return "No microphone found. Please ensure one is connected and enabled."
	case errors.Is(err, ErrDeviceBusy):
		return "Microphone is already in use or cannot be accessed. Please check other applications."
	default:
		return "Could not access microphone."
	}
}
