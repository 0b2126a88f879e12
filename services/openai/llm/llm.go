package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/sashabaranov/go-openai"

	"reportvoice/core"
	"reportvoice/utils/retry"
)

// OpenAILLMService implements the exchange Generator using OpenAI chat completions.
// Any OpenAI-compatible endpoint works through BaseURL.
type OpenAILLMService struct {
	client      *openai.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	policy      retry.Policy
	logger      *core.Logger

	// Service state
	isInitialized bool
	mu            sync.RWMutex
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxAttempts int     `json:"max_attempts" yaml:"max_attempts"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   512,
		Temperature: 0.7,
		MaxAttempts: retry.DefaultPolicy().MaxAttempts,
	}
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = config.MaxAttempts

	return &OpenAILLMService{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		policy:      policy,
		logger:      logger.With(map[string]interface{}{"component": "openai_llm", "model": config.Model}),
	}
}

// Init initializes the OpenAI client
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.apiKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(s.apiKey)
	if s.baseURL != "" {
		clientConfig.BaseURL = s.baseURL
	}
	s.client = openai.NewClientWithConfig(clientConfig)
	s.isInitialized = true
	return nil
}

// Cleanup performs cleanup operations
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = nil
	s.isInitialized = false
	return nil
}

// Generate runs a single-candidate chat completion for prompt.
func (s *OpenAILLMService) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()

	if !initialized {
		if err := s.Init(ctx); err != nil {
			return "", err
		}
		s.mu.RLock()
		client = s.client
		s.mu.RUnlock()
	}

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		N:           1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var output string
	err := retry.Do(ctx, s.policy, retryable, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			s.logger.Warn("retrying completion request", "attempt", attempt)
		}
		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return convertError(err)
		}
		if len(resp.Choices) == 0 {
			return core.ErrNoAnswer
		}
		output = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

// convertError maps go-openai status errors onto core generation errors.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return core.GenerationStatusError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return core.GenerationStatusError(reqErr.HTTPStatusCode, "")
	}
	return fmt.Errorf("openai: failed to create completion: %w", err)
}

// retryable reports transport failures, attempt timeouts, 429 and 5xx.
// Malformed responses and request-building failures are final.
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
