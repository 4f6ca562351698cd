package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audit"
	"github.com/Protocol-Lattice/saathi/pkg/resolver"
)

func TestObserverCounters(t *testing.T) {
	m := New("")
	m.Resolved(audit.ChannelText, resolver.IdentityFastPath, "hi", 10*time.Millisecond)
	m.Resolved(audit.ChannelText, resolver.IdentityFastPath, "hi", 20*time.Millisecond)
	m.Failed(audit.ChannelVoice, apperr.KindEmptyCapture)

	if got := testutil.ToFloat64(m.ResolvesTotal.WithLabelValues("text", "identity_fast_path", "hi")); got != 2 {
		t.Fatalf("expected 2 resolves, got %v", got)
	}
	if got := testutil.ToFloat64(m.FailuresTotal.WithLabelValues("voice", "empty_capture")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestSpeechGauge(t *testing.T) {
	m := New("test")
	m.SpeechStarted()
	if testutil.ToFloat64(m.Speaking) != 1 {
		t.Fatalf("expected speaking gauge set")
	}
	m.SpeechEnded()
	if testutil.ToFloat64(m.Speaking) != 0 {
		t.Fatalf("expected speaking gauge cleared")
	}
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New("saathi")
	h := m.Instrument("/api/text", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/text", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/text", "409")); got != 1 {
		t.Fatalf("expected one 409 request, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "saathi_http_requests_total") {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
