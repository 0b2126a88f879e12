// Package tts synthesizes speech through the Google Translate TTS endpoint,
// the same backend the gTTS library uses. It needs no API key and speaks a
// wide set of languages, but each request is limited to roughly 100 characters,
// so replies are split and the MP3 segments concatenated.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"reportvoice/core"
	"reportvoice/utils/text"
)

const maxCharsPerChunk = 100

// GoogleTTSConfig holds configuration for the Translate TTS service.
type GoogleTTSConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	// TLD selects the regional host (com, co.uk, com.au ...) which changes the accent.
	TLD  string `json:"tld" yaml:"tld"`
	Slow bool   `json:"slow" yaml:"slow"`
}

// DefaultConfig returns a GoogleTTSConfig with sensible defaults
func DefaultConfig() GoogleTTSConfig {
	return GoogleTTSConfig{
		TLD: "com",
	}
}

// supportedLanguages is the language table of the translate_tts endpoint.
var supportedLanguages = map[string]struct{}{
	"af": {}, "am": {}, "ar": {}, "bg": {}, "bn": {}, "bs": {}, "ca": {}, "cs": {}, "cy": {}, "da": {},
	"de": {}, "el": {}, "en": {}, "es": {}, "et": {}, "eu": {}, "fi": {}, "fr": {}, "gl": {}, "gu": {},
	"ha": {}, "hi": {}, "hr": {}, "hu": {}, "id": {}, "is": {}, "it": {}, "iw": {}, "ja": {}, "jw": {},
	"km": {}, "kn": {}, "ko": {}, "la": {}, "lt": {}, "lv": {}, "ml": {}, "mr": {}, "ms": {}, "my": {},
	"ne": {}, "nl": {}, "no": {}, "pa": {}, "pl": {}, "pt": {}, "ro": {}, "ru": {}, "si": {}, "sk": {},
	"sq": {}, "sr": {}, "su": {}, "sv": {}, "sw": {}, "ta": {}, "te": {}, "th": {}, "tl": {}, "tr": {},
	"uk": {}, "ur": {}, "vi": {}, "yue": {}, "zh-CN": {}, "zh-TW": {},
}

// languageAliases maps detector output onto the endpoint's codes.
var languageAliases = map[string]string{
	"he":    "iw",
	"jv":    "jw",
	"nb":    "no",
	"nn":    "no",
	"fil":   "tl",
	"zh":    "zh-CN",
	"zh-cn": "zh-CN",
	"zh-tw": "zh-TW",
	"cmn":   "zh-CN",
}

// ResolveLanguage maps a detected code to a supported endpoint code.
func ResolveLanguage(language string) (string, bool) {
	lang := strings.TrimSpace(language)
	if alias, ok := languageAliases[strings.ToLower(lang)]; ok {
		lang = alias
	}
	if _, ok := supportedLanguages[lang]; ok {
		return lang, true
	}
	lower := strings.ToLower(lang)
	if _, ok := supportedLanguages[lower]; ok {
		return lower, true
	}
	if i := strings.IndexAny(lower, "-_"); i > 0 {
		if _, ok := supportedLanguages[lower[:i]]; ok {
			return lower[:i], true
		}
	}
	return "", false
}

// GoogleTTS implements the exchange Synthesizer over translate_tts.
type GoogleTTS struct {
	config  GoogleTTSConfig
	baseURL string
	client  *http.Client
	logger  *core.Logger
}

// NewGoogleTTS creates a new Translate TTS synthesizer.
func NewGoogleTTS(config GoogleTTSConfig, logger *core.Logger) *GoogleTTS {
	if config.TLD == "" {
		config.TLD = DefaultConfig().TLD
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://translate.google.%s/translate_tts", config.TLD)
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GoogleTTS{
		config:  config,
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger.With(map[string]interface{}{"component": "google_tts"}),
	}
}

// Synthesize speaks text in language and returns one MP3 stream.
func (g *GoogleTTS) Synthesize(ctx context.Context, reply string, language string) (*core.Speech, error) {
	lang, ok := ResolveLanguage(language)
	if !ok {
		return nil, core.NewError(core.KindUnsupportedLanguage, fmt.Sprintf("google tts does not speak language %q", language), nil)
	}

	chunks := text.SplitForSpeech(reply, maxCharsPerChunk)
	if len(chunks) == 0 {
		return nil, errors.New("google tts: no text to speak")
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetchChunk(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("google tts: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out.Write(data)
	}

	g.logger.Debug("synthesized reply", "language", lang, "chunks", len(chunks), "bytes", out.Len())
	return &core.Speech{Data: out.Bytes(), MediaType: "audio/mpeg"}, nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	speed := "1"
	if g.config.Slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", lang)
	q.Set("client", "tw-ob")
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "http://translate.google.com/")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio response")
	}
	return data, nil
}
