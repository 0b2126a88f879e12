package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"reportvoice/core"
	"reportvoice/utils/audio"
)

// DeepgramConfig holds configuration options for Deepgram prerecorded STT
type DeepgramConfig struct {
	APIKey        string            `json:"api_key" yaml:"api_key"`
	BaseURL       string            `json:"base_url" yaml:"base_url"`
	Model         string            `json:"model" yaml:"model"`
	Language      string            `json:"language" yaml:"language"` // empty enables language detection
	Punctuate     bool              `json:"punctuate" yaml:"punctuate"`
	SmartFormat   bool              `json:"smart_format" yaml:"smart_format"`
	Numerals      bool              `json:"numerals" yaml:"numerals"`
	Keywords      []string          `json:"keywords" yaml:"keywords"`
	Keyterms      []string          `json:"keyterms" yaml:"keyterms"`
	MinConfidence float64           `json:"min_confidence" yaml:"min_confidence"`
	Extra         map[string]string `json:"extra" yaml:"extra"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Punctuate:   true,
		SmartFormat: true,
	}
}

// DeepgramSTTService transcribes complete recordings with Deepgram's /v1/listen endpoint.
type DeepgramSTTService struct {
	config *DeepgramConfig
	client *http.Client
	logger *core.Logger
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	return &DeepgramSTTService{
		config: config,
		client: &http.Client{},
		logger: logger.With(map[string]interface{}{"component": "deepgram_stt"}),
	}
}

// Transcribe sends the recording and returns the best transcript. An empty
// transcript, or one below MinConfidence, yields core.ErrUnrecognized.
func (d *DeepgramSTTService) Transcribe(ctx context.Context, recording []byte) (core.Transcription, error) {
	if d.config.APIKey == "" {
		return core.Transcription{}, fmt.Errorf("Deepgram API key is required")
	}

	listenURL, err := d.buildListenURL()
	if err != nil {
		return core.Transcription{}, fmt.Errorf("deepgram stt: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL, bytes.NewReader(recording))
	if err != nil {
		return core.Transcription{}, fmt.Errorf("deepgram stt: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", audio.DetectMediaType(recording))

	resp, err := d.client.Do(req)
	if err != nil {
		return core.Transcription{}, fmt.Errorf("deepgram stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Transcription{}, fmt.Errorf("deepgram stt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Transcription{}, fmt.Errorf("deepgram stt: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ListenV1Response
	if err := sonic.Unmarshal(body, &result); err != nil {
		return core.Transcription{}, fmt.Errorf("deepgram stt: parse response: %w", err)
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return core.Transcription{}, core.ErrUnrecognized
	}
	channel := result.Results.Channels[0]
	best := channel.Alternatives[0]
	transcript := strings.TrimSpace(best.Transcript)
	if transcript == "" {
		d.logger.Debug("received empty transcript")
		return core.Transcription{}, core.ErrUnrecognized
	}
	if d.config.MinConfidence > 0 && best.Confidence < d.config.MinConfidence {
		d.logger.Debug("transcript below confidence threshold", "confidence", best.Confidence)
		return core.Transcription{}, core.ErrUnrecognized
	}

	language := channel.DetectedLanguage
	if language == "" {
		language = d.config.Language
	}
	d.logger.Debugf("STT Final Result: %s", transcript)
	return core.Transcription{Text: transcript, Language: language}, nil
}

// buildListenURL constructs the /v1/listen URL with query parameters
func (d *DeepgramSTTService) buildListenURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()
	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	} else {
		q.Set("detect_language", "true")
	}
	q.Set("punctuate", boolToString(d.config.Punctuate))
	q.Set("smart_format", boolToString(d.config.SmartFormat))
	q.Set("numerals", boolToString(d.config.Numerals))

	for _, keyword := range d.config.Keywords {
		q.Add("keywords", keyword)
	}
	for _, keyterm := range d.config.Keyterms {
		q.Add("keyterm", keyterm)
	}
	for key, value := range d.config.Extra {
		q.Set(key, value)
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ListenV1Response is the subset of the prerecorded response that is read.
type ListenV1Response struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage   string  `json:"detected_language,omitempty"`
			LanguageConfidence float64 `json:"language_confidence,omitempty"`
			Alternatives       []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}
