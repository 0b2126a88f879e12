package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reportvoice/core"
)

func newTestService(t *testing.T, text string) *WhisperSTTService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if _, header, err := r.FormFile("file"); err != nil || header.Filename != "question.wav" {
			t.Errorf("file part missing or misnamed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":` + text + `}`))
	}))
	t.Cleanup(srv.Close)
	return NewWhisperSTTService(WhisperConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, nil)
}

func TestTranscribe_Success(t *testing.T) {
	svc := newTestService(t, `" Is my hemoglobin normal? "`)
	got, err := svc.Transcribe(context.Background(), []byte("RIFF\x00\x00\x00\x00WAVE"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got.Text != "Is my hemoglobin normal?" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestTranscribe_Empty(t *testing.T) {
	svc := newTestService(t, `""`)
	_, err := svc.Transcribe(context.Background(), []byte("RIFF\x00\x00\x00\x00WAVE"))
	if !errors.Is(err, core.ErrUnrecognized) {
		t.Errorf("expected ErrUnrecognized, got %v", err)
	}
}

func TestFileExtension(t *testing.T) {
	if fileExtension("audio/mpeg") != ".mp3" || fileExtension("application/octet-stream") != ".wav" {
		t.Error("unexpected extension mapping")
	}
}
