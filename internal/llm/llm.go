package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/config"
)

const openAIBaseURL = "https://api.openai.com/v1"

// Request is one generation call: a system instruction, a user prompt, and
// whether the response must be a JSON object.
type Request struct {
	System    string
	Prompt    string
	JSON      bool
	MaxTokens int
}

// Provider is the interface for generative text services.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	// IsConfigured reports whether the service can be called at all. An
	// unconfigured provider is a normal condition; callers degrade to a no-op.
	IsConfigured() bool
}

// Available reports whether p is non-nil and configured.
func Available(p Provider) bool {
	return p != nil && p.IsConfigured()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(req Request) []chatMessage {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}

// OpenAIProvider is an OpenAI chat completions provider.
type OpenAIProvider struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	client      *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKey string, temperature float64, timeout time.Duration) *OpenAIProvider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		Model:       model,
		APIKey:      apiKey,
		BaseURL:     openAIBaseURL,
		Temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a chat completion request and returns the message content.
func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    messages(req),
		"temperature": o.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(o.BaseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	log.Debug().Str("model", o.Model).Int("tokens", result.Usage.TotalTokens).Msg("LLM call complete")
	return result.Choices[0].Message.Content, nil
}

// OllamaProvider is a local Ollama provider.
type OllamaProvider struct {
	Model       string
	BaseURL     string
	Temperature float64
	client      *http.Client

	once      sync.Once
	available bool
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, temperature float64, timeout time.Duration) *OllamaProvider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		Model:       model,
		BaseURL:     baseURL,
		Temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks once whether Ollama is running with the model pulled.
func (o *OllamaProvider) IsConfigured() bool {
	o.once.Do(func() { o.available = o.probe() })
	return o.available
}

func (o *OllamaProvider) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Warn().Str("model", o.Model).Msg("Ollama model not found")
	return false
}

// Generate sends a chat request to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, req Request) (string, error) {
	options := map[string]any{"temperature": o.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body := map[string]any{
		"model":    o.Model,
		"messages": messages(req),
		"stream":   false,
		"options":  options,
	}
	if req.JSON {
		body["format"] = "json"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// CreateProvider builds the configured provider. The result is never nil; it
// may report IsConfigured() == false when no credential or local model is
// available.
func CreateProvider(cfg config.LLM, apiKey string) Provider {
	if strings.ToLower(cfg.Provider) == "ollama" {
		p := NewOllamaProvider(cfg.Model, cfg.OllamaURL, cfg.Temperature, cfg.Timeout)
		if p.IsConfigured() {
			log.Info().Str("model", cfg.Model).Msg("using Ollama")
			return p
		}
		log.Warn().Msg("Ollama not available, LLM features disabled")
		return p
	}

	p := NewOpenAIProvider(cfg.Model, apiKey, cfg.Temperature, cfg.Timeout)
	if p.IsConfigured() {
		log.Info().Str("model", cfg.Model).Msg("using OpenAI")
	} else {
		log.Warn().Str("env", cfg.APIKeyEnv).Msg("no OpenAI API key found, LLM features disabled")
	}
	return p
}
