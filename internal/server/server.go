// Package server exposes one conversation session over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/internal/metrics"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/conversation"
)

const defaultMaxUpload = 25 << 20

// Options configure a Server. Session is required.
type Options struct {
	Session *conversation.Session
	// Microphone receives uploaded recordings for /api/voice. When nil the
	// route answers 501.
	Microphone *audio.SwitchMicrophone
	Hub        *Hub
	Webhook    http.Handler
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// Server is the HTTP presentation boundary.
type Server struct {
	session  *conversation.Session
	mic      *audio.SwitchMicrophone
	hub      *Hub
	webhook  http.Handler
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader

	addr            string
	maxUpload       int64
	shutdownTimeout time.Duration

	mux *http.ServeMux
	// voiceMu is held by uploads and live recording starts, so a queued
	// upload is only ever acquired by the upload that queued it.
	voiceMu sync.Mutex
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Session == nil {
		return nil, errors.New("server: session is required")
	}
	s := &Server{
		session:         opts.Session,
		mic:             opts.Microphone,
		hub:             opts.Hub,
		webhook:         opts.Webhook,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		addr:            opts.Addr,
		maxUpload:       opts.MaxUploadBytes,
		shutdownTimeout: opts.ShutdownTimeout,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger, s.metrics)
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 10 * time.Second
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.handle("GET /healthz", s.handleHealth)
	s.handle("POST /api/text", s.handleText)
	s.handle("POST /api/recording/start", s.handleRecordingStart)
	s.handle("POST /api/recording/stop", s.handleRecordingStop)
	s.handle("POST /api/voice", s.handleVoice)
	s.handle("POST /api/speak", s.handleSpeak)
	s.handle("POST /api/speak/stop", s.handleSpeakStop)
	s.handle("GET /api/turns", s.handleTurns)
	s.handle("GET /api/mode", s.handleMode)
	s.handle("GET /ws", s.handleWS)
	if s.webhook != nil {
		s.mux.Handle("POST /webhook", s.instrument("/webhook", s.webhook))
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	route := pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}
	s.mux.Handle(pattern, s.instrument(route, h))
}

func (s *Server) instrument(route string, h http.Handler) http.Handler {
	h = s.logRequests(h)
	if s.metrics != nil {
		h = s.metrics.Instrument(route, h)
	}
	return h
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.mux }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
