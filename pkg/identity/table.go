// Package identity answers "who are you" questions from a fixed, hand-maintained
// script instead of the open-ended generator.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/saathi/pkg/langcode"
)

// Entry is the identity script for one language.
type Entry struct {
	Code      string
	Canonical string
	Triggers  []string
}

// Match is the result of a successful classification.
type Match struct {
	Code      string
	Canonical string
}

// Table maps language codes to canonical identity answers and trigger phrases.
// Entries are checked in insertion order. A Table is read-only once built.
type Table struct {
	defaultCode string
	order       []string
	canonical   map[string]string
	triggers    map[string][]string
}

// NewTable validates entries and builds a table. defaultCode must have an entry.
func NewTable(defaultCode string, entries ...Entry) (*Table, error) {
	if !langcode.Valid(defaultCode) {
		return nil, fmt.Errorf("identity: invalid default language %q", defaultCode)
	}
	t := &Table{
		defaultCode: defaultCode,
		canonical:   make(map[string]string, len(entries)),
		triggers:    make(map[string][]string, len(entries)),
	}
	for _, e := range entries {
		if !langcode.Valid(e.Code) {
			return nil, fmt.Errorf("identity: invalid language %q", e.Code)
		}
		if _, dup := t.canonical[e.Code]; dup {
			return nil, fmt.Errorf("identity: language %s listed twice", e.Code)
		}
		text := strings.TrimSpace(e.Canonical)
		if text == "" {
			return nil, fmt.Errorf("identity: empty canonical text for %s", e.Code)
		}
		phrases := make([]string, 0, len(e.Triggers))
		for _, p := range e.Triggers {
			if p = normalize(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		t.order = append(t.order, e.Code)
		t.canonical[e.Code] = text
		t.triggers[e.Code] = phrases
	}
	if _, ok := t.canonical[defaultCode]; !ok {
		return nil, errors.New("identity: default language has no entry")
	}
	return t, nil
}

// DefaultCode is the fallback language of the table.
func (t *Table) DefaultCode() string { return t.defaultCode }

// Classify reports which language's trigger phrase occurs in text. The first
// language in table order with any matching phrase wins.
func (t *Table) Classify(text string) (Match, bool) {
	in := normalize(text)
	if in == "" {
		return Match{}, false
	}
	for _, code := range t.order {
		for _, phrase := range t.triggers[code] {
			if strings.Contains(in, phrase) {
				return t.Canonical(code), true
			}
		}
	}
	return Match{}, false
}

// Canonical returns the identity answer for code, falling back to the default
// language when code has no entry.
func (t *Table) Canonical(code string) Match {
	if text, ok := t.canonical[code]; ok {
		return Match{Code: code, Canonical: text}
	}
	return Match{Code: t.defaultCode, Canonical: t.canonical[t.defaultCode]}
}

// Entries returns a copy of the table in classification order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, Entry{
			Code:      code,
			Canonical: t.canonical[code],
			Triggers:  append([]string(nil), t.triggers[code]...),
		})
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
