package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Feed.URL == "" {
		t.Error("expected feed url to be populated")
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.AcceptanceThreshold != DefaultAcceptanceThreshold {
		t.Errorf("expected threshold %d, got %d", DefaultAcceptanceThreshold, cfg.Pipeline.AcceptanceThreshold)
	}
	if cfg.Pipeline.MaxSignalsPerDocument != DefaultMaxSignalsPerDocument {
		t.Errorf("expected cap %d, got %d", DefaultMaxSignalsPerDocument, cfg.Pipeline.MaxSignalsPerDocument)
	}
	if cfg.Pipeline.DocumentDelay != time.Second {
		t.Errorf("expected 1s delay, got %v", cfg.Pipeline.DocumentDelay)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.LLM.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, cfg.LLM.MaxTokens)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: ollama
  model: qwen2.5:7b
  max_tokens: 512
pipeline:
  max_signals_per_document: 5
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Pipeline.MaxSignalsPerDocument != 5 {
		t.Errorf("expected cap 5, got %d", cfg.Pipeline.MaxSignalsPerDocument)
	}
	// Defaults should still be set for unspecified fields
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.LLM.OllamaURL)
	}
	if cfg.Pipeline.MinSentenceLength != 20 || cfg.Pipeline.MaxSentenceLength != 500 {
		t.Errorf("expected default sentence window, got [%d, %d]",
			cfg.Pipeline.MinSentenceLength, cfg.Pipeline.MaxSentenceLength)
	}
	if cfg.Fetch.UserAgent == "" {
		t.Error("expected default fetch user agent")
	}
}

func TestParseRejectsInvalidWindow(t *testing.T) {
	data := []byte(`
pipeline:
  min_sentence_length: 100
  max_sentence_length: 50
`)
	if _, err := parse(data); err == nil {
		t.Error("expected error for inverted sentence window")
	}
}

func TestParseRejectsUnknownHTMLMode(t *testing.T) {
	if _, err := parse([]byte("fetch:\n  html_mode: magic\n")); err == nil {
		t.Error("expected error for unknown html mode")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Feed.Source != "PwC" {
		t.Errorf("expected source 'PwC', got %q", cfg.Feed.Source)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("RADAR_TEST_KEY", "sk-test")
	cfg := Default()
	cfg.LLM.APIKeyEnv = "RADAR_TEST_KEY"
	if cfg.APIKey() != "sk-test" {
		t.Errorf("expected key from env, got %q", cfg.APIKey())
	}
	cfg.LLM.APIKeyEnv = ""
	if cfg.APIKey() != "" {
		t.Error("expected empty key when no env var configured")
	}
}
