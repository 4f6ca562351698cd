package langcode

import "testing"

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"en":      true,
		"hi":      true,
		"fil":     true,
		"en-US":   true,
		"zh-HAN":  true,
		"":        false,
		"EN":      false,
		"en-us":   false,
		"english": false,
		"e":       false,
		"en-":     false,
		"??":      false,
		"...":     false,
		"Error":   false,
		" en":     false,
	}
	for code, want := range cases {
		if got := Valid(code); got != want {
			t.Fatalf("Valid(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestOrFallback(t *testing.T) {
	if got, ok := OrFallback("bn", "en"); got != "bn" || !ok {
		t.Fatalf("expected bn to be kept, got %q %v", got, ok)
	}
	if got, ok := OrFallback("Bengali", "en"); got != "en" || ok {
		t.Fatalf("expected fallback, got %q %v", got, ok)
	}
}

func TestPrimary(t *testing.T) {
	for in, want := range map[string]string{"en-US": "en", "xx_ZZ": "xx", "HI": "hi", "bn": "bn", "": ""} {
		if got := Primary(in); got != want {
			t.Fatalf("Primary(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHeard(t *testing.T) {
	if got := Heard("hi"); got != "(Heard: hi)" {
		t.Fatalf("unexpected annotation %q", got)
	}
}
