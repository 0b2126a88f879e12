package factories

import (
	"fmt"

	"reportvoice/core"
	"reportvoice/handlers/exchange"
	"reportvoice/handlers/ingest"
	deepgramstt "reportvoice/services/deepgram/stt"
	googletts "reportvoice/services/google/tts"
	palmllm "reportvoice/services/palm/llm"
	"reportvoice/services/tesseract/ocr"
	"reportvoice/services/whatlang"
	"reportvoice/store"
)

// SessionConfig groups the collaborators and handler settings of both pipelines
// and exposes BuildHandlers to construct them in a single call.
type SessionConfig struct {
	OCR      OCRFactoryConfig        `json:"ocr" yaml:"ocr"`
	STT      STTFactoryConfig        `json:"stt" yaml:"stt"`
	LLM      LLMFactoryConfig        `json:"llm" yaml:"llm"`
	TTS      TTSFactoryConfig        `json:"tts" yaml:"tts"`
	Language whatlang.DetectorConfig `json:"language" yaml:"language"`
	Ingest   ingest.IngestConfig     `json:"ingest" yaml:"ingest"`
	Exchange exchange.ExchangeConfig `json:"exchange" yaml:"exchange"`
}

// DefaultSessionConfig returns the reference provider stack:
// Tesseract, Deepgram prerecorded STT, PaLM text-bison and Google Translate TTS.
func DefaultSessionConfig() SessionConfig {
	tesseract := ocr.DefaultConfig()
	palm := palmllm.DefaultConfig()
	google := googletts.DefaultConfig()
	return SessionConfig{
		OCR:      OCRFactoryConfig{TesseractConfig: &tesseract},
		STT:      STTFactoryConfig{DeepgramConfig: deepgramstt.DefaultConfig()},
		LLM:      LLMFactoryConfig{PaLMConfig: &palm},
		TTS:      TTSFactoryConfig{GoogleConfig: &google},
		Language: whatlang.DefaultConfig(),
		Ingest:   ingest.DefaultConfig(),
		Exchange: exchange.DefaultConfig(),
	}
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SessionConfig.InjectAPIKeys after loading settings so that
// secrets are never stored in config files.
type APIKeys struct {
	Google     string // Used for the PaLM generator.
	Deepgram   string // Used for Deepgram STT and TTS providers.
	OpenAI     string // Used for OpenAI LLM and Whisper STT providers.
	Groq       string
	Together   string
	OpenRouter string
	Mistral    string
}

// InjectAPIKeys applies API credentials to every configured provider that has
// no key of its own.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	if cfg := c.STT.DeepgramConfig; cfg != nil && cfg.APIKey == "" {
		cfg.APIKey = keys.Deepgram
	}
	if cfg := c.STT.WhisperConfig; cfg != nil && cfg.APIKey == "" {
		cfg.APIKey = keys.OpenAI
	}
	if cfg := c.TTS.DeepgramConfig; cfg != nil && cfg.APIKey == "" {
		cfg.APIKey = keys.Deepgram
	}
	injectLLMKeys(&c.LLM, keys)
}

// injectLLMKeys applies the relevant API key to a single LLMFactoryConfig.
func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	if cfg.PaLMConfig != nil && cfg.PaLMConfig.APIKey == "" {
		cfg.PaLMConfig.APIKey = keys.Google
	}
	if cfg.OpenAIConfig != nil && cfg.OpenAIConfig.APIKey == "" {
		cfg.OpenAIConfig.APIKey = keys.OpenAI
	}
	if cfg.GroqConfig != nil && cfg.GroqConfig.APIKey == "" {
		cfg.GroqConfig.APIKey = keys.Groq
	}
	if cfg.TogetherConfig != nil && cfg.TogetherConfig.APIKey == "" {
		cfg.TogetherConfig.APIKey = keys.Together
	}
	if cfg.OpenRouterConfig != nil && cfg.OpenRouterConfig.APIKey == "" {
		cfg.OpenRouterConfig.APIKey = keys.OpenRouter
	}
	if cfg.MistralConfig != nil && cfg.MistralConfig.APIKey == "" {
		cfg.MistralConfig.APIKey = keys.Mistral
	}
}

// SessionHandlers holds the ready-to-use pipelines produced by BuildHandlers.
type SessionHandlers struct {
	Ingest   *ingest.IngestHandler
	Exchange *exchange.ExchangeHandler
}

// BuildHandlers constructs both pipelines over reports, publishing stage events to sink (may be nil).
func (c SessionConfig) BuildHandlers(reports store.ReportStore, sink core.EventSink, logger *core.Logger) (*SessionHandlers, error) {
	extractor, err := BuildTextExtractor(c.OCR, logger)
	if err != nil {
		return nil, fmt.Errorf("ocr service: %w", err)
	}
	transcriber, err := BuildTranscriber(c.STT, logger)
	if err != nil {
		return nil, fmt.Errorf("stt service: %w", err)
	}
	generator, err := BuildGenerator(c.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm service: %w", err)
	}
	synthesizer, err := BuildSynthesizer(c.TTS, logger)
	if err != nil {
		return nil, fmt.Errorf("tts service: %w", err)
	}
	detector := whatlang.NewDetector(c.Language, logger)

	return &SessionHandlers{
		Ingest:   ingest.NewIngestHandler(extractor, reports, sink, c.Ingest, logger),
		Exchange: exchange.NewExchangeHandler(transcriber, detector, generator, synthesizer, reports, sink, c.Exchange, logger),
	}, nil
}
