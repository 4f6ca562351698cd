package audit

import (
	"context"
	"regexp"
)

const redactedMark = "[REDACTED]"

// Redactor masks contact details before an entry leaves the process.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor masks emails and phone numbers, plus any extra patterns.
func NewRedactor(extra ...*regexp.Regexp) *Redactor {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`),
		regexp.MustCompile(`(?:\+?\d{1,3}[\s-]?)?\b(?:\d[\s-]?){9,11}\d\b`),
	}
	return &Redactor{patterns: append(patterns, extra...)}
}

// Redact returns s with every match replaced and whether anything changed.
func (r *Redactor) Redact(s string) (string, bool) {
	out := s
	for _, re := range r.patterns {
		out = re.ReplaceAllString(out, redactedMark)
	}
	return out, out != s
}

// Redacted wraps next so user input and answers are masked before Append.
func Redacted(next Log, r *Redactor) Log {
	if r == nil {
		r = NewRedactor()
	}
	return &redactingLog{next: next, r: r}
}

type redactingLog struct {
	next Log
	r    *Redactor
}

func (l *redactingLog) Append(ctx context.Context, e Entry) error {
	e.Input, _ = l.r.Redact(e.Input)
	e.Response, _ = l.r.Redact(e.Response)
	e.OriginalText, _ = l.r.Redact(e.OriginalText)
	return l.next.Append(ctx, e)
}
