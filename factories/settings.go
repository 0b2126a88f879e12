package factories

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// LoggingConfig selects the process logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// SettingsConfig is the top-level config loaded from settings.json or settings.yaml.
type SettingsConfig struct {
	Logging   LoggingConfig          `json:"logging" yaml:"logging"`
	Transport TransportFactoryConfig `json:"transport" yaml:"transport"`
	Store     StoreFactoryConfig     `json:"store" yaml:"store"`
	Session   SessionConfig          `json:"session_config" yaml:"session_config"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Transport: DefaultTransportFactoryConfig(),
		Session:   DefaultSessionConfig(),
	}
}

// providerSections lists the "set exactly one" blocks of a SessionConfig. A
// block present in the file replaces the default provider selection entirely.
var providerSections = []string{"ocr", "stt", "llm", "tts"}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig, starting
// from DefaultSettingsConfig so that absent fields keep their defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var raw map[string]interface{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg := DefaultSettingsConfig()
	clearSelectedProviders(&cfg, raw)
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromYAML parses a YAML document into a SettingsConfig with the
// same defaulting rules as SettingsConfigFromJSON.
func SettingsConfigFromYAML(data []byte) (SettingsConfig, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg := DefaultSettingsConfig()
	clearSelectedProviders(&cfg, raw)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads a settings file, choosing the parser by extension.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SettingsConfigFromYAML(data)
	default:
		return SettingsConfigFromJSON(data)
	}
}

// clearSelectedProviders drops default provider choices for every block the
// document sets, so that choosing e.g. "openai" does not leave "palm" selected too.
func clearSelectedProviders(cfg *SettingsConfig, raw map[string]interface{}) {
	session, ok := raw["session_config"].(map[string]interface{})
	if !ok {
		return
	}
	for _, section := range providerSections {
		if _, present := session[section]; !present {
			continue
		}
		switch section {
		case "ocr":
			cfg.Session.OCR = OCRFactoryConfig{}
		case "stt":
			cfg.Session.STT = STTFactoryConfig{}
		case "llm":
			cfg.Session.LLM = LLMFactoryConfig{}
		case "tts":
			cfg.Session.TTS = TTSFactoryConfig{}
		}
	}
}
