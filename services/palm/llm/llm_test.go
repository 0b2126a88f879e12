package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"reportvoice/core"
)

func newTestService(baseURL string) *PaLMService {
	return NewPaLMService(PaLMConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		TimeoutSeconds: 2,
		MaxAttempts:    3,
		BackoffMillis:  1,
	}, nil)
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta2/models/text-bison-001:generateText" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		var req generateTextRequest
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Temperature != 0.7 || req.CandidateCount != 1 {
			t.Errorf("sampling = %v/%d", req.Temperature, req.CandidateCount)
		}
		if !strings.Contains(req.Prompt.Text, "Hemoglobin") {
			t.Errorf("prompt not forwarded: %q", req.Prompt.Text)
		}
		w.Write([]byte(`{"candidates":[{"output":"Yes, it is normal."},{"output":"ignored"}]}`))
	}))
	defer srv.Close()

	got, err := newTestService(srv.URL).Generate(context.Background(), "Hemoglobin 13.2 g/dL")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "Yes, it is normal." {
		t.Errorf("output = %q", got)
	}
}

func TestGenerate_NonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL).Generate(context.Background(), "q")
	if core.KindOf(err) != core.KindGenerationError {
		t.Fatalf("kind = %v, err = %v", core.KindOf(err), err)
	}
	if core.StatusCodeOf(err) != http.StatusForbidden {
		t.Errorf("status = %d", core.StatusCodeOf(err))
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if msg := core.UserMessage(err); msg != "Error: Received a bad response from the API. Status code: 403" {
		t.Errorf("user message = %q", msg)
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates":[{"output":"ok"}]}`))
	}))
	defer srv.Close()

	got, err := newTestService(srv.URL).Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL).Generate(context.Background(), "q")
	if core.StatusCodeOf(err) != http.StatusTooManyRequests {
		t.Fatalf("err = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filters":[{"reason":"OTHER"}]}`))
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL).Generate(context.Background(), "q")
	if !errors.Is(err, core.ErrNoAnswer) {
		t.Errorf("expected ErrNoAnswer, got %v", err)
	}
}

func TestGenerate_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	svc.policy.AttemptTimeout = 50 * time.Millisecond
	svc.policy.MaxAttempts = 2

	start := time.Now()
	_, err := svc.Generate(context.Background(), "q")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("deadline not enforced, took %v", elapsed)
	}
}

func TestGenerate_TransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	svc := NewPaLMService(PaLMConfig{
		APIKey:        "SECRET-KEY-123",
		BaseURL:       baseURL,
		MaxAttempts:   2,
		BackoffMillis: 1,
	}, nil)
	_, err := svc.Generate(context.Background(), "q")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error leaks the api key: %v", err)
	}
	if msg := core.UserMessage(err); strings.Contains(msg, "SECRET-KEY-123") {
		t.Errorf("user message leaks the api key: %q", msg)
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	svc := NewPaLMService(PaLMConfig{}, nil)
	if _, err := svc.Generate(context.Background(), "q"); err == nil {
		t.Error("expected error without api key")
	}
}
