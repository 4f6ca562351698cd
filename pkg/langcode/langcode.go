// Package langcode validates the short language tags attached to conversation turns.
package langcode

import (
	"fmt"
	"regexp"
	"strings"
)

// Display sentinels. None of them pass Valid.
const (
	Detecting = "..."
	Unknown   = "??"
	ErrorTag  = "Error"
)

var pattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2,3})?$`)

// Valid reports whether code looks like "en", "hi" or "en-US".
func Valid(code string) bool {
	return pattern.MatchString(code)
}

// OrFallback returns code when it is valid and fallback otherwise. The boolean
// is false when the fallback was substituted.
func OrFallback(code, fallback string) (string, bool) {
	if Valid(code) {
		return code, true
	}
	return fallback, false
}

// Primary returns the primary subtag: "en" for "en-US", "en_GB" or "EN".
func Primary(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

// Heard formats the display annotation shown next to a transcribed user turn.
func Heard(code string) string {
	return fmt.Sprintf("(Heard: %s)", code)
}
