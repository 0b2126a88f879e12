package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"reportvoice/core"
)

// maxCharsPerRequest is Deepgram's limit on the text of a single /v1/speak call.
const maxCharsPerRequest = 2000

// DepgramTTSConfig holds configuration for the Deepgram TTS service
type DepgramTTSConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Encoding string `json:"encoding" yaml:"encoding"`
	// Voices maps an ISO 639-1 language code to an Aura model. Entries replace the defaults.
	Voices map[string]string `json:"voices,omitempty" yaml:"voices,omitempty"`
}

// defaultVoices lists the languages Aura-2 can speak.
var defaultVoices = map[string]string{
	"en": "aura-2-thalia-en",
	"es": "aura-2-celeste-es",
	"nl": "aura-2-rhea-nl",
	"fr": "aura-2-agathe-fr",
	"de": "aura-2-viktoria-de",
	"it": "aura-2-livia-it",
	"ja": "aura-2-fujin-ja",
}

// DefaultConfig returns a DepgramTTSConfig with sensible defaults
func DefaultConfig() DepgramTTSConfig {
	return DepgramTTSConfig{
		BaseURL:  "https://api.deepgram.com/v1/speak",
		Encoding: "mp3",
	}
}

// DepgramTTS synthesizes complete replies with Deepgram's REST speak API.
type DepgramTTS struct {
	config DepgramTTSConfig
	voices map[string]string
	client *http.Client
	logger *core.Logger
}

type speakV1Request struct {
	Text string `json:"text"`
}

type speakV1Error struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// NewDepgramTTS creates a new Deepgram TTS service with the provided config.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDepgramTTS(config DepgramTTSConfig, logger *core.Logger) *DepgramTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	voices := make(map[string]string, len(defaultVoices)+len(config.Voices))
	for lang, model := range defaultVoices {
		voices[lang] = model
	}
	for lang, model := range config.Voices {
		voices[strings.ToLower(lang)] = model
	}

	return &DepgramTTS{
		config: config,
		voices: voices,
		client: &http.Client{},
		logger: logger.With(map[string]interface{}{"component": "deepgram_tts"}),
	}
}

// encodingMediaType maps a Deepgram encoding to the returned content type.
func encodingMediaType(encoding string) string {
	switch encoding {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "aac":
		return "audio/aac"
	case "linear16", "mulaw", "alaw":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// VoiceFor returns the Aura model for language, or false when the language is not spoken.
func (d *DepgramTTS) VoiceFor(language string) (string, bool) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	model, ok := d.voices[lang]
	return model, ok
}

// Synthesize converts text into speech in language. Languages without a voice
// yield core.ErrUnsupportedLanguage without calling the API.
func (d *DepgramTTS) Synthesize(ctx context.Context, text string, language string) (*core.Speech, error) {
	if d.config.APIKey == "" {
		return nil, errors.New("Deepgram API key is required")
	}
	model, ok := d.VoiceFor(language)
	if !ok {
		return nil, core.NewError(core.KindUnsupportedLanguage, fmt.Sprintf("deepgram has no voice for language %q", language), nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("deepgram tts: empty text")
	}
	if len([]rune(text)) > maxCharsPerRequest {
		text = string([]rune(text)[:maxCharsPerRequest])
		d.logger.Warn("reply truncated to deepgram request limit", "limit", maxCharsPerRequest)
	}

	speakURL, err := url.Parse(d.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: parse base url: %w", err)
	}
	q := speakURL.Query()
	q.Set("model", model)
	q.Set("encoding", d.config.Encoding)
	speakURL.RawQuery = q.Encode()

	payload, err := sonic.Marshal(speakV1Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr speakV1Error
		if sonic.Unmarshal(body, &apiErr) == nil && apiErr.ErrMsg != "" {
			return nil, fmt.Errorf("deepgram tts: status %d: %s: %s", resp.StatusCode, apiErr.ErrCode, apiErr.ErrMsg)
		}
		return nil, fmt.Errorf("deepgram tts: unexpected status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errors.New("deepgram tts: empty audio response")
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || strings.HasPrefix(mediaType, "application/") {
		mediaType = encodingMediaType(d.config.Encoding)
	}
	d.logger.Debug("synthesized reply", "model", model, "bytes", len(body))
	return &core.Speech{Data: body, MediaType: mediaType}, nil
}
