package factories

import (
	"errors"

	"reportvoice/core"
	"reportvoice/handlers/exchange"
	deepgramstt "reportvoice/services/deepgram/stt"
	whisperstt "reportvoice/services/openai/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty" yaml:"deepgram,omitempty"`
	WhisperConfig  *whisperstt.WhisperConfig   `json:"whisper,omitempty" yaml:"whisper,omitempty"`
}

// BuildTranscriber constructs an ITranscriber from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTranscriber(config STTFactoryConfig, logger *core.Logger) (exchange.ITranscriber, error) {
	if config.DeepgramConfig != nil {
		return deepgramstt.NewDeepgramSTTService(config.DeepgramConfig, logger), nil
	}
	if config.WhisperConfig != nil {
		return whisperstt.NewWhisperSTTService(*config.WhisperConfig, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
