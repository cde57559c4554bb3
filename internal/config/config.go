package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Pipeline defaults. The threshold and per-document cap are exported so
// callers and tests can refer to them without repeating the numbers.
const (
	DefaultAcceptanceThreshold   = 50
	DefaultMaxSignalsPerDocument = 20
	DefaultMinSentenceLength     = 20
	DefaultMaxSentenceLength     = 500
	DefaultMaxAttempts           = 1
	DefaultMaxTokens             = 1024
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type Config struct {
	Feed     Feed     `yaml:"feed"`
	LLM      LLM      `yaml:"llm"`
	Pipeline Pipeline `yaml:"pipeline"`
	Fetch    Fetch    `yaml:"fetch"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Feed struct {
	URL       string        `yaml:"url"`
	Source    string        `yaml:"source"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LLM struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	OllamaURL   string        `yaml:"ollama_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Pipeline struct {
	MaxSignalsPerDocument int           `yaml:"max_signals_per_document"`
	MinSentenceLength     int           `yaml:"min_sentence_length"`
	MaxSentenceLength     int           `yaml:"max_sentence_length"`
	AcceptanceThreshold   int           `yaml:"acceptance_threshold"`
	DocumentDelay         time.Duration `yaml:"document_delay"`
	// MaxAttempts bounds how many times a document may be processed before a
	// failure becomes permanent.
	MaxAttempts int `yaml:"max_attempts"`
}

type Fetch struct {
	Timeout      time.Duration `yaml:"timeout"`
	HTMLMode     string        `yaml:"html_mode"` // "strip" or "readability"
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for radar.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "radar")
}

// DataDir returns the XDG data directory for radar.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "radar")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/radar/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'radar init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	return &Config{
		Feed: Feed{
			URL:       "https://feeds.feedburner.com/GlobalPressRoom",
			Source:    "PwC",
			UserAgent: browserUserAgent,
			Timeout:   10 * time.Second,
		},
		LLM: LLM{
			Provider:    "openai",
			Model:       "gpt-3.5-turbo-1106",
			OllamaURL:   "http://localhost:11434",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 1.0,
			MaxTokens:   DefaultMaxTokens,
			Timeout:     30 * time.Second,
		},
		Pipeline: Pipeline{
			MaxSignalsPerDocument: DefaultMaxSignalsPerDocument,
			MinSentenceLength:     DefaultMinSentenceLength,
			MaxSentenceLength:     DefaultMaxSentenceLength,
			AcceptanceThreshold:   DefaultAcceptanceThreshold,
			DocumentDelay:         time.Second,
			MaxAttempts:           DefaultMaxAttempts,
		},
		Fetch: Fetch{
			Timeout:      15 * time.Second,
			HTMLMode:     "strip",
			UserAgent:    browserUserAgent,
			MaxBodyBytes: 25 << 20,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p := c.Pipeline
	if p.MinSentenceLength < 0 || p.MaxSentenceLength < p.MinSentenceLength {
		return fmt.Errorf("invalid sentence length window [%d, %d]", p.MinSentenceLength, p.MaxSentenceLength)
	}
	if p.AcceptanceThreshold < 0 || p.AcceptanceThreshold > 100 {
		return fmt.Errorf("acceptance_threshold must be within [0, 100], got %d", p.AcceptanceThreshold)
	}
	if p.MaxSignalsPerDocument < 0 {
		return fmt.Errorf("max_signals_per_document must not be negative")
	}
	switch c.Fetch.HTMLMode {
	case "", "strip", "readability":
	default:
		return fmt.Errorf("unknown fetch.html_mode %q", c.Fetch.HTMLMode)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIKey reads the generative service credential from the configured
// environment variable.
func (c *Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
