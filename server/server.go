package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"reportvoice/core"
	"reportvoice/protocol"
	"reportvoice/transports/websocket"
)

// IIngester is the report ingestion pipeline.
type IIngester interface {
	Ingest(ctx context.Context, sessionID string, image []byte) core.IngestStatus
}

// IAsker is the question-answer exchange pipeline.
type IAsker interface {
	Ask(ctx context.Context, sessionID string, recording []byte) core.ExchangeResponse
}

// Server exposes the Analyze and Send actions over HTTP.
type Server struct {
	config    ServerConfig
	ingester  IIngester
	asker     IAsker
	hub       *websocket.EventHub
	artifacts *ArtifactRegistry
	logger    *core.Logger
	mux       *http.ServeMux
	baseCtx   context.Context
}

// NewServer wires the routes. hub may be nil to disable the event stream.
func NewServer(config ServerConfig, ingester IIngester, asker IAsker, hub *websocket.EventHub, logger *core.Logger) *Server {
	defaults := DefaultConfig()
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if config.ArtifactTTLSeconds <= 0 {
		config.ArtifactTTLSeconds = defaults.ArtifactTTLSeconds
	}
	if config.ShutdownSeconds <= 0 {
		config.ShutdownSeconds = defaults.ShutdownSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]interface{}{"component": "http"})

	s := &Server{
		config:    config,
		ingester:  ingester,
		asker:     asker,
		hub:       hub,
		artifacts: NewArtifactRegistry(seconds(config.ArtifactTTLSeconds), logger),
		logger:    logger,
		mux:       http.NewServeMux(),
		baseCtx:   context.Background(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/reports", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/reports/{id}/questions", s.handleAsk)
	s.mux.HandleFunc("GET /api/audio/{id}", s.handleAudio)
	if s.hub != nil {
		s.mux.HandleFunc("GET /api/reports/{id}/events", s.handleEvents)
	}
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Artifacts exposes the pending reply audio registry.
func (s *Server) Artifacts() *ArtifactRegistry {
	return s.artifacts
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	httpServer := &http.Server{
		Addr:        s.config.Addr,
		Handler:     s.Handler(),
		ReadTimeout: seconds(s.config.ReadTimeoutSeconds),
		// no WriteTimeout: event streams are long-lived
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.artifacts.Run(sweepCtx, seconds(s.config.ArtifactTTLSeconds)/4+time.Second)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.config.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(s.config.ShutdownSeconds))
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	image, formSession, err := s.readUpload(w, r, "image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: err.Error()})
		return
	}
	if sessionID == "" {
		sessionID = formSession
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, done := s.sessionContext(r.Context(), sessionID)
	defer done()

	status := s.ingester.Ingest(ctx, sessionID, image)
	writeJSON(w, analyzeStatus(status.Code), protocol.AnalyzeResponse{
		Status:    string(status.Code),
		Message:   status.Message,
		SessionID: status.SessionID,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	recording, _, err := s.readUpload(w, r, "audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: err.Error()})
		return
	}

	ctx, done := s.sessionContext(r.Context(), sessionID)
	defer done()

	resp := s.asker.Ask(ctx, sessionID, recording)
	body := protocol.AskResponse{
		Stage:      string(resp.Stage),
		Kind:       string(resp.Kind),
		Reply:      resp.Reply,
		Transcript: resp.Request.Transcript,
		Language:   resp.Request.Language,
	}
	if resp.Audio != nil {
		s.artifacts.Register(resp.Audio)
		body.AudioURL = "/api/audio/" + resp.Audio.ID
	}
	writeJSON(w, askStatus(resp.Kind), body)
}

// handleAudio streams a reply once and deletes it.
// handleAudio delivers the whole reply once and then releases it. Range
// requests get the full body so a media element's probe cannot consume a
// partial copy. HEAD leaves the artifact in place.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		artifact *core.AudioArtifact
		ok       bool
	)
	if r.Method == http.MethodHead {
		artifact, ok = s.artifacts.Peek(id)
	} else {
		artifact, ok = s.artifacts.Take(id)
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, protocol.ErrorResponse{Error: "audio not found or already delivered"})
		return
	}
	if r.Method != http.MethodHead {
		defer func() {
			if err := artifact.Release(); err != nil {
				s.logger.Warn("failed to release artifact", "audio_id", artifact.ID, "error", err)
			}
		}()
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		writeJSON(w, http.StatusGone, protocol.ErrorResponse{Error: "audio no longer available"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", artifact.MediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Accept-Ranges", "none")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("audio delivery interrupted", "audio_id", artifact.ID, "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeSession(s.baseCtx, w, r, r.PathValue("id"))
}

// readUpload returns the named multipart file, or the raw body for other
// content types, along with an optional session_id form value.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read body: %w", err)
		}
		return data, "", nil
	}

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("parse form: %w", err)
	}
	sessionID := r.FormValue("session_id")
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, sessionID, nil
	}
	if err != nil {
		return nil, sessionID, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, sessionID, fmt.Errorf("read %s: %w", field, err)
	}
	return data, sessionID, nil
}

// sessionContext attaches a session logger that also appends to the session's .jsonl file.
func (s *Server) sessionContext(ctx context.Context, sessionID string) (context.Context, func()) {
	if s.config.SessionLogDir == "" || sessionID == "" || strings.ContainsAny(sessionID, `/\.`) {
		return ctx, func() {}
	}
	writer, err := core.OpenSessionLogWriter(s.config.SessionLogDir, sessionID)
	if err != nil {
		s.logger.Warn("session log unavailable", "session_id", sessionID, "error", err)
		return ctx, func() {}
	}
	logger := core.NewSessionLogger(s.logger, writer)
	return core.ContextWithSessionLogger(ctx, logger), writer.Close
}

func analyzeStatus(code core.IngestStatusCode) int {
	switch code {
	case core.IngestSuccess:
		return http.StatusOK
	case core.IngestInvalidInput:
		return http.StatusBadRequest
	case core.IngestNoTextDetected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func askStatus(kind core.Kind) int {
	switch kind {
	case core.KindInvalidInput:
		return http.StatusBadRequest
	case core.KindGenerationError:
		return http.StatusBadGateway
	case core.KindProcessingError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the WebSocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
