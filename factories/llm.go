package factories

import (
	"errors"

	"reportvoice/core"
	"reportvoice/handlers/exchange"
	openaillm "reportvoice/services/openai/llm"
	palmllm "reportvoice/services/palm/llm"
)

// LLMFactoryConfig holds provider-specific configs for answer generation.
// Set exactly one provider config; the rest should be left nil.
// Every provider other than PaLM speaks the OpenAI-compatible protocol and is
// implemented via the same OpenAI service with a custom base URL.
type LLMFactoryConfig struct {
	PaLMConfig       *palmllm.PaLMConfig `json:"palm,omitempty" yaml:"palm,omitempty"`
	OpenAIConfig     *openaillm.Config   `json:"openai,omitempty" yaml:"openai,omitempty"`
	GroqConfig       *openaillm.Config   `json:"groq,omitempty" yaml:"groq,omitempty"`
	TogetherConfig   *openaillm.Config   `json:"together,omitempty" yaml:"together,omitempty"`
	OpenRouterConfig *openaillm.Config   `json:"openrouter,omitempty" yaml:"openrouter,omitempty"`
	MistralConfig    *openaillm.Config   `json:"mistral,omitempty" yaml:"mistral,omitempty"`
}

// Default base URLs for OpenAI-compatible providers.
const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	togetherBaseURL   = "https://api.together.xyz/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
)

// BuildGenerator constructs an IGenerator from the given factory config.
// Exactly one provider config must be non-nil.
func BuildGenerator(config LLMFactoryConfig, logger *core.Logger) (exchange.IGenerator, error) {
	if config.PaLMConfig != nil {
		return palmllm.NewPaLMService(*config.PaLMConfig, logger), nil
	}
	if config.OpenAIConfig != nil {
		return openaillm.NewOpenAILLMService(*config.OpenAIConfig, logger), nil
	}
	if config.GroqConfig != nil {
		return buildOpenAICompatible(*config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger), nil
	}
	if config.TogetherConfig != nil {
		return buildOpenAICompatible(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	}
	if config.OpenRouterConfig != nil {
		return buildOpenAICompatible(*config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o", logger), nil
	}
	if config.MistralConfig != nil {
		return buildOpenAICompatible(*config.MistralConfig, mistralBaseURL, "mistral-large-latest", logger), nil
	}
	return nil, errors.New("LLMFactoryConfig: no provider config specified")
}

// buildOpenAICompatible creates an OpenAI-compatible generator, applying default
// base URL and model if not explicitly set in the config.
func buildOpenAICompatible(cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) *openaillm.OpenAILLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger)
}
