// Package metrics exposes Prometheus collectors for conversations, speech
// output and the HTTP boundary.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audit"
	"github.com/Protocol-Lattice/saathi/pkg/resolver"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ResolvesTotal   *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	FailuresTotal   *prometheus.CounterVec
	SpeechTotal     *prometheus.CounterVec
	Speaking        prometheus.Gauge
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WSClients       prometheus.Gauge
}

// New registers the collectors under namespace ("saathi" when empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "saathi"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ResolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Resolved exchanges by channel, source and language",
		}, []string{"channel", "source", "language"}),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time from submission to answer",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"channel"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed exchanges by channel and error kind",
		}, []string{"channel", "kind"}),
		SpeechTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_events_total",
			Help:      "Speech output events",
		}, []string{"event"}),
		Speaking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speaking",
			Help:      "1 while an utterance is playing",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
		}, []string{"route"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
	}
	m.registry.MustRegister(
		m.ResolvesTotal,
		m.ResolveDuration,
		m.FailuresTotal,
		m.SpeechTotal,
		m.Speaking,
		m.RequestsTotal,
		m.RequestDuration,
		m.WSClients,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Resolved implements conversation.Observer.
func (m *Metrics) Resolved(channel audit.Channel, source resolver.Source, lang string, elapsed time.Duration) {
	m.ResolvesTotal.WithLabelValues(string(channel), string(source), lang).Inc()
	m.ResolveDuration.WithLabelValues(string(channel)).Observe(elapsed.Seconds())
}

// Failed implements conversation.Observer.
func (m *Metrics) Failed(channel audit.Channel, kind apperr.Kind) {
	m.FailuresTotal.WithLabelValues(string(channel), kind.String()).Inc()
}

// SpeechStarted records the start of playback.
func (m *Metrics) SpeechStarted() {
	m.SpeechTotal.WithLabelValues("start").Inc()
	m.Speaking.Set(1)
}

// SpeechEnded records the end of playback.
func (m *Metrics) SpeechEnded() {
	m.SpeechTotal.WithLabelValues("end").Inc()
	m.Speaking.Set(0)
}

// SpeechFailed records a synthesis failure.
func (m *Metrics) SpeechFailed() {
	m.SpeechTotal.WithLabelValues("error").Inc()
	m.Speaking.Set(0)
}

// RecordRequest records a finished HTTP request.
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Instrument wraps next, recording its status and duration under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.RecordRequest(route, rw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack supports websocket upgrades on instrumented routes.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
