package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"reportvoice/core"
	"reportvoice/protocol"
)

type stubIngester struct {
	sessionID string
	image     []byte
	status    core.IngestStatus
}

func (s *stubIngester) Ingest(ctx context.Context, sessionID string, image []byte) core.IngestStatus {
	s.sessionID = sessionID
	s.image = image
	status := s.status
	if status.OK() {
		status.SessionID = sessionID
	}
	return status
}

type stubAsker struct {
	sessionID string
	resp      func() core.ExchangeResponse
}

func (s *stubAsker) Ask(ctx context.Context, sessionID string, recording []byte) core.ExchangeResponse {
	s.sessionID = sessionID
	return s.resp()
}

func writeArtifact(t *testing.T, dir string) *core.AudioArtifact {
	t.Helper()
	path := filepath.Join(dir, "reply.mp3")
	if err := os.WriteFile(path, []byte("ID3-audio"), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return &core.AudioArtifact{ID: "audio-1", Path: path, MediaType: "audio/mpeg", Language: "en"}
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	data, _ := io.ReadAll(body)
	if err := sonic.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := NewServer(DefaultConfig(), &stubIngester{}, &stubAsker{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyze_Multipart(t *testing.T) {
	ingester := &stubIngester{status: core.IngestStatus{Code: core.IngestSuccess, Message: core.MsgIngestSuccess}}
	srv := NewServer(DefaultConfig(), ingester, &stubAsker{}, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("session_id", "s-42")
	part, _ := mw.CreateFormFile("image", "report.png")
	part.Write([]byte("png-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[protocol.AnalyzeResponse](t, rec.Body)
	if resp.SessionID != "s-42" || resp.Status != "success" || resp.Message != core.MsgIngestSuccess {
		t.Errorf("response = %+v", resp)
	}
	if string(ingester.image) != "png-bytes" {
		t.Errorf("image = %q", ingester.image)
	}
}

func TestAnalyze_RawBodyStartsSession(t *testing.T) {
	ingester := &stubIngester{status: core.IngestStatus{Code: core.IngestSuccess}}
	srv := NewServer(DefaultConfig(), ingester, &stubAsker{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader("jpeg-bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	resp := decode[protocol.AnalyzeResponse](t, rec.Body)
	if resp.SessionID == "" || resp.SessionID != ingester.sessionID {
		t.Errorf("session = %q, ingester saw %q", resp.SessionID, ingester.sessionID)
	}
}

func TestAnalyze_StatusCodes(t *testing.T) {
	tests := []struct {
		code core.IngestStatusCode
		want int
	}{
		{core.IngestInvalidInput, http.StatusBadRequest},
		{core.IngestNoTextDetected, http.StatusUnprocessableEntity},
		{core.IngestProcessingError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		ingester := &stubIngester{status: core.IngestStatus{Code: tt.code, Message: "m"}}
		srv := NewServer(DefaultConfig(), ingester, &stubAsker{}, nil, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader("x")))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.code, rec.Code, tt.want)
		}
	}
}

func TestAsk_AudioDeliveredOnceThenReleased(t *testing.T) {
	artifact := writeArtifact(t, t.TempDir())
	asker := &stubAsker{resp: func() core.ExchangeResponse {
		return core.ExchangeResponse{
			Reply:   "Yes, your hemoglobin is within the normal range.",
			Audio:   artifact,
			Stage:   core.StageSynthesized,
			Request: core.ExchangeRequest{Transcript: "Is my hemoglobin normal?", Language: "en"},
		}
	}}
	srv := NewServer(DefaultConfig(), &stubIngester{}, asker, nil, nil)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/s1/questions", strings.NewReader("wav")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[protocol.AskResponse](t, rec.Body)
	if asker.sessionID != "s1" || resp.AudioURL != "/api/audio/audio-1" || resp.Stage != "synthesized" || resp.Language != "en" {
		t.Fatalf("response = %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.AudioURL, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3-audio" {
		t.Fatalf("audio = %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Error("artifact file not deleted after delivery")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.AudioURL, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second download status = %d", rec.Code)
	}
}

func TestAsk_NoAudioOnFailure(t *testing.T) {
	asker := &stubAsker{resp: func() core.ExchangeResponse {
		return core.ExchangeResponse{
			Reply: "Error: Received a bad response from the API. Status code: 500",
			Stage: core.StageError,
			Kind:  core.KindGenerationError,
		}
	}}
	srv := NewServer(DefaultConfig(), &stubIngester{}, asker, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/s1/questions", strings.NewReader("wav")))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
	resp := decode[protocol.AskResponse](t, rec.Body)
	if resp.AudioURL != "" || resp.Kind != "generation_error" {
		t.Errorf("response = %+v", resp)
	}
	if srv.Artifacts().Len() != 0 {
		t.Error("registry should be empty")
	}
}

func TestAsk_UploadTooLarge(t *testing.T) {
	config := DefaultConfig()
	config.MaxUploadBytes = 4
	srv := NewServer(config, &stubIngester{}, &stubAsker{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/s1/questions", strings.NewReader("too many bytes")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSessionLogsWritten(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.SessionLogDir = dir
	ingester := &stubIngester{status: core.IngestStatus{Code: core.IngestSuccess}}
	srv := NewServer(config, ingester, &stubAsker{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports?session_id=abc", strings.NewReader("x")))

	data, err := os.ReadFile(filepath.Join(dir, "abc.jsonl"))
	if err != nil {
		t.Fatalf("read session log: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"abc"`) {
		t.Errorf("session log = %s", data)
	}
}

func TestArtifactRegistry_Sweep(t *testing.T) {
	dir := t.TempDir()
	reg := NewArtifactRegistry(time.Minute, nil)
	now := time.Now()
	reg.now = func() time.Time { return now }

	artifact := writeArtifact(t, dir)
	reg.Register(artifact)
	if n := reg.Sweep(); n != 0 {
		t.Fatalf("swept %d fresh artifacts", n)
	}

	now = now.Add(2 * time.Minute)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Error("expired artifact not deleted")
	}
	if _, ok := reg.Take(artifact.ID); ok {
		t.Error("expired artifact still registered")
	}
}

func TestArtifactRegistry_Close(t *testing.T) {
	reg := NewArtifactRegistry(time.Hour, nil)
	artifact := writeArtifact(t, t.TempDir())
	reg.Register(artifact)
	reg.Close()
	if reg.Len() != 0 {
		t.Error("registry not emptied")
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Error("artifact not released on close")
	}
}

func TestAudio_RangeRequestStillDeliversWholeReply(t *testing.T) {
	artifact := writeArtifact(t, t.TempDir())
	srv := NewServer(DefaultConfig(), &stubIngester{}, &stubAsker{}, nil, nil)
	srv.artifacts.Register(artifact)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/audio/audio-1", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("HEAD = %d %q", rec.Code, rec.Body.String())
	}
	if srv.artifacts.Len() != 1 {
		t.Fatal("HEAD must not claim the artifact")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audio/audio-1", nil)
	req.Header.Set("Range", "bytes=0-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3-audio" {
		t.Fatalf("range GET = %d %q, want the whole reply", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "none" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "9" {
		t.Errorf("Content-Length = %q", got)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Error("artifact file not deleted after delivery")
	}
}

func TestArtifactRegistry_CloseLogsReleaseFailure(t *testing.T) {
	var warnings []string
	logger := core.NewLogger(func(level, msg string, attrs map[string]interface{}) {
		if level == core.LevelWarn.String() {
			warnings = append(warnings, msg)
		}
	})

	// A non-empty directory cannot be removed, so Release fails.
	dir := filepath.Join(t.TempDir(), "stuck.mp3")
	if err := os.MkdirAll(filepath.Join(dir, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	reg := NewArtifactRegistry(time.Hour, logger)
	reg.Register(&core.AudioArtifact{ID: "audio-2", Path: dir})
	reg.Close()

	if len(warnings) != 1 || warnings[0] != "failed to release pending artifact" {
		t.Errorf("warnings = %v", warnings)
	}
}
