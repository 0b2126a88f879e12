package exchange

type ExchangeConfig struct {
	ArtifactDir      string `json:"artifact_dir" yaml:"artifact_dir"`           // Directory for synthesized replies. Empty uses the OS temp dir.
	NormalizeAudio   bool   `json:"normalize_audio" yaml:"normalize_audio"`     // Convert G.711 and multi-channel WAV uploads to mono 16-bit PCM before transcription.
	FallbackLanguage string `json:"fallback_language" yaml:"fallback_language"` // Used when neither the detector nor the transcriber yields a language. Empty makes that an error.
}

// DefaultConfig returns an ExchangeConfig with sensible defaults.
func DefaultConfig() ExchangeConfig {
	return ExchangeConfig{
		NormalizeAudio: true,
	}
}
