package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"reportvoice/core"
	"reportvoice/utils/audio"
)

// WhisperConfig holds configuration for OpenAI transcription
type WhisperConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language" yaml:"language"`
	Prompt   string `json:"prompt" yaml:"prompt"`
}

// DefaultConfig returns a WhisperConfig with sensible defaults
func DefaultConfig() WhisperConfig {
	return WhisperConfig{Model: openai.Whisper1}
}

// WhisperSTTService transcribes complete recordings with the audio/transcriptions API.
type WhisperSTTService struct {
	config WhisperConfig
	client *openai.Client
	logger *core.Logger
}

// NewWhisperSTTService creates a Whisper transcriber.
func NewWhisperSTTService(config WhisperConfig, logger *core.Logger) *WhisperSTTService {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &WhisperSTTService{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.With(map[string]interface{}{"component": "whisper_stt"}),
	}
}

// Transcribe returns the recognized text. Silence and noise yield core.ErrUnrecognized.
func (s *WhisperSTTService) Transcribe(ctx context.Context, recording []byte) (core.Transcription, error) {
	if s.config.APIKey == "" {
		return core.Transcription{}, fmt.Errorf("OpenAI API key is required")
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		FilePath: "question" + fileExtension(audio.DetectMediaType(recording)),
		Reader:   bytes.NewReader(recording),
		Prompt:   s.config.Prompt,
		Language: s.config.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return core.Transcription{}, fmt.Errorf("whisper stt: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return core.Transcription{}, core.ErrUnrecognized
	}
	s.logger.Debugf("STT Final Result: %s", text)
	return core.Transcription{Text: text, Language: s.config.Language}, nil
}

// fileExtension gives the upload a name the API can infer the container from.
func fileExtension(mediaType string) string {
	switch mediaType {
	case audio.MediaTypeMP3:
		return ".mp3"
	case audio.MediaTypeOGG:
		return ".ogg"
	case audio.MediaTypeWebM:
		return ".webm"
	case audio.MediaTypeFLAC:
		return ".flac"
	case audio.MediaTypeMP4:
		return ".m4a"
	default:
		return ".wav"
	}
}
