// Package llm generates answers with the PaLM generateText REST endpoint.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"reportvoice/core"
	"reportvoice/utils/retry"
)

// PaLMConfig holds the configuration for the PaLM text service
type PaLMConfig struct {
	APIKey         string  `json:"api_key" yaml:"api_key"`
	BaseURL        string  `json:"base_url" yaml:"base_url"`
	Model          string  `json:"model" yaml:"model"`
	Temperature    float32 `json:"temperature" yaml:"temperature"`
	CandidateCount int     `json:"candidate_count" yaml:"candidate_count"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts    int     `json:"max_attempts" yaml:"max_attempts"`
	BackoffMillis  int     `json:"backoff_millis" yaml:"backoff_millis"`
}

// DefaultConfig returns a PaLMConfig with sensible defaults
func DefaultConfig() PaLMConfig {
	policy := retry.DefaultPolicy()
	return PaLMConfig{
		BaseURL:        "https://generativelanguage.googleapis.com",
		Model:          "text-bison-001",
		Temperature:    0.7,
		CandidateCount: 1,
		TimeoutSeconds: int(policy.AttemptTimeout / time.Second),
		MaxAttempts:    policy.MaxAttempts,
		BackoffMillis:  int(policy.InitialBackoff / time.Millisecond),
	}
}

type generateTextRequest struct {
	Model          string     `json:"model"`
	Prompt         textPrompt `json:"prompt"`
	Temperature    float32    `json:"temperature"`
	CandidateCount int        `json:"candidateCount"`
}

type textPrompt struct {
	Text string `json:"text"`
}

type generateTextResponse struct {
	Candidates []struct {
		Output string `json:"output"`
	} `json:"candidates"`
}

// PaLMService implements the exchange Generator.
type PaLMService struct {
	config PaLMConfig
	policy retry.Policy
	client *http.Client
	logger *core.Logger
}

// NewPaLMService creates a generator. Zero fields in config take their defaults.
func NewPaLMService(config PaLMConfig, logger *core.Logger) *PaLMService {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if config.CandidateCount == 0 {
		config.CandidateCount = defaults.CandidateCount
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BackoffMillis == 0 {
		config.BackoffMillis = defaults.BackoffMillis
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = config.MaxAttempts
	policy.AttemptTimeout = time.Duration(config.TimeoutSeconds) * time.Second
	policy.InitialBackoff = time.Duration(config.BackoffMillis) * time.Millisecond

	return &PaLMService{
		config: config,
		policy: policy,
		client: &http.Client{},
		logger: logger.With(map[string]interface{}{"component": "palm_llm", "model": config.Model}),
	}
}

// Generate sends prompt and returns the first candidate's output.
func (s *PaLMService) Generate(ctx context.Context, prompt string) (string, error) {
	if s.config.APIKey == "" {
		return "", errors.New("PaLM API key is required")
	}

	payload, err := sonic.Marshal(generateTextRequest{
		Model:          s.config.Model,
		Prompt:         textPrompt{Text: prompt},
		Temperature:    s.config.Temperature,
		CandidateCount: s.config.CandidateCount,
	})
	if err != nil {
		return "", fmt.Errorf("palm: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta2/models/%s:generateText",
		strings.TrimRight(s.config.BaseURL, "/"), s.config.Model)

	var output string
	err = retry.Do(ctx, s.policy, retryable, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			s.logger.Warn("retrying generation request", "attempt", attempt)
		}
		out, err := s.post(ctx, endpoint, payload)
		if err != nil {
			return err
		}
		output = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

func (s *PaLMService) post(ctx context.Context, endpoint string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("palm: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header so transport errors, which quote the URL, never carry it.
	req.Header.Set("x-goog-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("palm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("palm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", core.GenerationStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result generateTextResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("palm: parse response: %w", err)
	}
	// Safety filters drop candidates without a status error.
	if len(result.Candidates) == 0 {
		return "", core.ErrNoAnswer
	}
	return result.Candidates[0].Output, nil
}

// retryable reports transport failures, attempt timeouts, 429 and 5xx.
func retryable(err error) bool {
	var genErr *core.Error
	if errors.As(err, &genErr) {
		if genErr.Kind != core.KindGenerationError {
			return false
		}
		return genErr.StatusCode == http.StatusTooManyRequests || genErr.StatusCode >= 500
	}
	if retry.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
