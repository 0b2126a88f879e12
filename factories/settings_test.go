package factories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reportvoice/core"
	"reportvoice/store"
)

func TestDefaultSettingsConfig(t *testing.T) {
	cfg := DefaultSettingsConfig()
	if cfg.Session.LLM.PaLMConfig == nil || cfg.Session.LLM.PaLMConfig.Model != "text-bison-001" {
		t.Errorf("default generator = %+v", cfg.Session.LLM)
	}
	if cfg.Session.TTS.GoogleConfig == nil || cfg.Session.STT.DeepgramConfig == nil || cfg.Session.OCR.TesseractConfig == nil {
		t.Error("default providers not selected")
	}
	if cfg.Transport.HTTP.Addr != ":8080" || cfg.Transport.Events == nil {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestSettingsConfigFromJSON_ProviderSwitch(t *testing.T) {
	data := []byte(`{
		"logging": {"level": "debug"},
		"store": {"sqlite": {"path": "/tmp/reports.db"}},
		"session_config": {
			"llm": {"openai": {"model": "gpt-4o"}},
			"exchange": {"fallback_language": "en"}
		}
	}`)
	cfg, err := SettingsConfigFromJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Session.LLM.PaLMConfig != nil {
		t.Error("default palm provider should be cleared when llm is set")
	}
	if cfg.Session.LLM.OpenAIConfig == nil || cfg.Session.LLM.OpenAIConfig.Model != "gpt-4o" {
		t.Errorf("openai = %+v", cfg.Session.LLM.OpenAIConfig)
	}
	if cfg.Session.TTS.GoogleConfig == nil {
		t.Error("untouched tts default was lost")
	}
	if cfg.Session.Exchange.FallbackLanguage != "en" || !cfg.Session.Exchange.NormalizeAudio {
		t.Errorf("exchange = %+v", cfg.Session.Exchange)
	}
	if cfg.Store.SQLiteConfig == nil || cfg.Store.SQLiteConfig.Path != "/tmp/reports.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestSettingsConfigFromYAML(t *testing.T) {
	data := []byte(`
transport:
  http:
    addr: ":9090"
session_config:
  tts:
    deepgram:
      encoding: mp3
  language:
    min_confidence: 0.2
`)
	cfg, err := SettingsConfigFromYAML(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Transport.HTTP.Addr != ":9090" || cfg.Transport.HTTP.MaxUploadBytes == 0 {
		t.Errorf("http = %+v", cfg.Transport.HTTP)
	}
	if cfg.Session.TTS.GoogleConfig != nil || cfg.Session.TTS.DeepgramConfig == nil {
		t.Errorf("tts = %+v", cfg.Session.TTS)
	}
	if cfg.Session.Language.MinConfidence != 0.2 {
		t.Errorf("language = %+v", cfg.Session.Language)
	}
}

func TestSettingsConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	if err := os.WriteFile(path, []byte("logging:\n  format: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := SettingsConfigFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("format = %q", cfg.Logging.Format)
	}

	if _, err := SettingsConfigFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := SettingsConfigFromJSON([]byte("{")); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestInjectAPIKeys(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.InjectAPIKeys(APIKeys{Google: "g", Deepgram: "d"})
	if cfg.LLM.PaLMConfig.APIKey != "g" || cfg.STT.DeepgramConfig.APIKey != "d" {
		t.Errorf("keys not injected: %+v %+v", cfg.LLM.PaLMConfig, cfg.STT.DeepgramConfig)
	}

	cfg.LLM.PaLMConfig.APIKey = "explicit"
	cfg.InjectAPIKeys(APIKeys{Google: "env"})
	if cfg.LLM.PaLMConfig.APIKey != "explicit" {
		t.Error("explicit key overwritten")
	}
}

func TestBuildProviders_RequireSelection(t *testing.T) {
	if _, err := BuildGenerator(LLMFactoryConfig{}, nil); err == nil {
		t.Error("expected error for empty llm config")
	}
	if _, err := BuildTranscriber(STTFactoryConfig{}, nil); err == nil {
		t.Error("expected error for empty stt config")
	}
	if _, err := BuildSynthesizer(TTSFactoryConfig{}, nil); err == nil {
		t.Error("expected error for empty tts config")
	}
	if _, err := BuildTextExtractor(OCRFactoryConfig{}, nil); err == nil {
		t.Error("expected error for empty ocr config")
	}
}

func TestNewPipeline_MemoryStore(t *testing.T) {
	settings := DefaultSettingsConfig()
	p, err := NewPipeline(settings, APIKeys{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	if p.Handlers().Ingest == nil || p.Handlers().Exchange == nil {
		t.Fatal("handlers not built")
	}
	status := p.Handlers().Ingest.Ingest(context.Background(), "", nil)
	if status.Code != core.IngestInvalidInput {
		t.Errorf("status = %+v", status)
	}
}

func TestNewPipeline_SQLiteStore(t *testing.T) {
	settings := DefaultSettingsConfig()
	settings.Store = StoreFactoryConfig{SQLiteConfig: &store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "r.db")}}
	p, err := NewPipeline(settings, APIKeys{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	report := &core.Report{SessionID: "s1", Text: "Hemoglobin: 13.2 g/dL"}
	if err := p.Store().Put(context.Background(), report); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := p.Store().Get(context.Background(), "s1")
	if err != nil || got.Text != report.Text {
		t.Errorf("Get = %+v, %v", got, err)
	}
}
