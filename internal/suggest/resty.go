package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonesrussell/seo-pinger/infrastructure/retry"
	"github.com/jonesrussell/seo-pinger/internal/domain"
)

// Provider defaults for the resty-backed suggesters.
const (
	DefaultOpenAIBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIModel   = "openai/gpt-4o-mini"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.1"
	DefaultTimeout       = 30 * time.Second
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatMessages(targetURL string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: UserPrompt(targetURL)},
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

// OpenAISuggester calls an OpenAI-compatible chat completions endpoint, such
// as OpenRouter.
type OpenAISuggester struct {
	http      *resty.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAI returns ErrMissingCredentials when cfg has no API key.
func NewOpenAI(cfg ProviderConfig) (*OpenAISuggester, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	return &OpenAISuggester{
		http:      newRestyClient(cfg.Timeout),
		baseURL:   strings.TrimRight(orDefault(cfg.BaseURL, DefaultOpenAIBaseURL), "/"),
		apiKey:    cfg.APIKey,
		model:     orDefault(cfg.Model, DefaultOpenAIModel),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Suggest implements Suggester.
func (s *OpenAISuggester) Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	body := map[string]any{
		"model":           s.model,
		"messages":        chatMessages(targetURL),
		"response_format": map[string]string{"type": "json_object"},
	}
	if s.maxTokens > 0 {
		body["max_tokens"] = s.maxTokens
	}

	var resp struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	r, err := s.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetBody(body).
		SetResult(&resp).
		Post(s.baseURL + "/chat/completions")
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("openai: %w", err))
	}
	if r.IsError() {
		return nil, statusError("openai", r.StatusCode(), r.String())
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	return ParseSites(resp.Choices[0].Message.Content)
}

// OllamaSuggester calls a local Ollama server.
type OllamaSuggester struct {
	http    *resty.Client
	baseURL string
	model   string
}

// NewOllama needs no credentials.
func NewOllama(cfg ProviderConfig) *OllamaSuggester {
	return &OllamaSuggester{
		http:    newRestyClient(cfg.Timeout),
		baseURL: strings.TrimRight(orDefault(cfg.BaseURL, DefaultOllamaBaseURL), "/"),
		model:   orDefault(cfg.Model, DefaultOllamaModel),
	}
}

// Suggest implements Suggester.
func (s *OllamaSuggester) Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	body := map[string]any{
		"model":    s.model,
		"messages": chatMessages(targetURL),
		"stream":   false,
		"format":   "json",
	}

	var resp struct {
		Message chatMessage `json:"message"`
	}
	r, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		Post(s.baseURL + "/api/chat")
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("ollama: %w", err))
	}
	if r.IsError() {
		return nil, statusError("ollama", r.StatusCode(), r.String())
	}
	return ParseSites(resp.Message.Content)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
