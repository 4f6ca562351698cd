package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/pkg/apperr"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/conversation"
	"github.com/Protocol-Lattice/saathi/pkg/speech"
)

type textRequest struct {
	Text string `json:"text"`
}

type speakRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

type voiceRequest struct {
	DataURI string `json:"dataUri"`
}

type turnResponse struct {
	Turn conversation.Turn `json:"turn"`
	Mode conversation.Mode `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	turn, err := s.session.SubmitText(r.Context(), req.Text)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Turn: turn, Mode: s.session.Mode()})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	s.voiceMu.Lock()
	err := s.session.StartRecording(r.Context())
	s.voiceMu.Unlock()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"mode": s.session.Mode()})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	turn, err := s.session.StopRecording(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Turn: turn, Mode: s.session.Mode()})
}

// handleVoice runs a complete record-and-answer cycle on an uploaded clip,
// sent either as multipart field "audio" or as JSON {"dataUri": ...}.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.mic == nil {
		writeError(w, http.StatusNotImplemented, "voice uploads are not enabled")
		return
	}
	payload, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()

	s.mic.Next(&audio.ReaderMicrophone{Data: payload.Data, MIME: payload.MIME})
	if err := s.session.StartRecording(r.Context()); err != nil {
		s.mic.Reset()
		s.writeSessionError(w, err)
		return
	}
	turn, err := s.session.StopRecording(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Turn: turn, Mode: s.session.Mode()})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (audio.Payload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, header, err := r.FormFile("audio")
		if err != nil {
			return audio.Payload{}, fmt.Errorf("missing audio field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return audio.Payload{}, fmt.Errorf("read upload: %w", err)
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = audio.DefaultMIME
		}
		return audio.Payload{MIME: mime, Data: data}, nil
	}
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return audio.Payload{}, fmt.Errorf("invalid body: %w", err)
	}
	return audio.ParseDataURI(req.DataURI)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.session.Speak(r.Context(), req.Text, req.Lang); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSpeakStop(w http.ResponseWriter, r *http.Request) {
	s.session.StopSpeaking()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"turns": s.session.Turns()})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mode": s.session.Mode()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.serve(conn)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrBusy),
		errors.Is(err, conversation.ErrNotRecording),
		errors.Is(err, speech.ErrSpeakPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrSpeechUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	case apperr.Classify(err) == apperr.KindInputCapture:
		writeError(w, http.StatusServiceUnavailable, apperr.UserMessage(err))
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apperr.UserMessage(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
