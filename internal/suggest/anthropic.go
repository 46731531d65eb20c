package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jonesrussell/seo-pinger/infrastructure/retry"
	"github.com/jonesrussell/seo-pinger/internal/domain"
)

// Anthropic defaults.
const (
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultMaxTokens      = 2048
)

// AnthropicSuggester calls the Anthropic Messages API.
type AnthropicSuggester struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic returns ErrMissingCredentials when cfg has no API key. Retries
// are left to the guard.
func NewAnthropic(cfg ProviderConfig) (*AnthropicSuggester, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &AnthropicSuggester{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Suggest implements Suggester.
func (s *AnthropicSuggester) Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(targetURL))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, statusError("anthropic", apiErr.StatusCode, apiErr.Error())
		}
		return nil, retry.Retryable(fmt.Errorf("anthropic: %w", err))
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return ParseSites(block.Text)
		}
	}
	return nil, fmt.Errorf("%w: no text block in reply", ErrMalformedResponse)
}
