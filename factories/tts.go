package factories

import (
	"errors"

	"reportvoice/core"
	"reportvoice/handlers/exchange"
	deepgramtts "reportvoice/services/deepgram/tts"
	googletts "reportvoice/services/google/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	GoogleConfig   *googletts.GoogleTTSConfig    `json:"google,omitempty" yaml:"google,omitempty"`
	DeepgramConfig *deepgramtts.DepgramTTSConfig `json:"deepgram,omitempty" yaml:"deepgram,omitempty"`
}

// BuildSynthesizer constructs an ISynthesizer from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSynthesizer(config TTSFactoryConfig, logger *core.Logger) (exchange.ISynthesizer, error) {
	if config.GoogleConfig != nil {
		return googletts.NewGoogleTTS(*config.GoogleConfig, logger), nil
	}
	if config.DeepgramConfig != nil {
		return deepgramtts.NewDepgramTTS(*config.DeepgramConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
