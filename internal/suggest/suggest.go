// Package suggest asks a language model for ping services suited to a URL.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonesrussell/seo-pinger/infrastructure/retry"
	"github.com/jonesrussell/seo-pinger/internal/domain"
)

var (
	// ErrMissingCredentials is returned when no API key is configured.
	ErrMissingCredentials = errors.New("suggestion service credentials are not configured")
	// ErrMalformedResponse is returned when the reply is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed suggestion response")
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown suggestion provider")
)

// Suggester returns candidate ping endpoints for a target URL. Results are
// unvalidated.
type Suggester interface {
	Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error)
}

// SystemPrompt frames the model as a source of machine-callable endpoints.
const SystemPrompt = "You are an SEO assistant. You answer only with JSON objects of the form " +
	`{"sites":[{"name":"...","description":"...","urlTemplate":"..."}]}` +
	" and never add commentary."

// UserPrompt asks for ping services for targetURL.
func UserPrompt(targetURL string) string {
	return fmt.Sprintf(`Generate a list of the top 10-15 major search engine programmatic ping services for submitting this URL for indexing: %s

For each service, provide its name, a brief one-sentence description, and the exact ping URL template. The template must be a direct API endpoint for automated submissions and contain '{URL}' as a placeholder for the URL to be submitted.

All endpoints MUST use the HTTPS protocol. Do NOT include any HTTP URLs.
Endpoints must respond to a simple GET request without a request body or special headers.
Do NOT include web pages, user dashboards, sitemap submission forms, or anything that needs manual interaction (e.g. Google Search Console, Bing Webmaster Tools).

A valid example is: 'https://www.google.com/ping?sitemap={URL}'.
An invalid example is: 'http://ping.baidu.com/ping/RPC2' (it uses HTTP).
An invalid example is: 'https://search.google.com/search-console' (it is a user webpage).

Respond with JSON: {"sites":[{"name":"","description":"","urlTemplate":""}]}`, targetURL)
}

// ParseSites decodes a model reply. A fenced ```json block is unwrapped and
// prose around a single JSON object is tolerated.
func ParseSites(text string) ([]domain.Endpoint, error) {
	body := unwrapFence(strings.TrimSpace(text))

	if i := strings.Index(body, "{"); i > 0 {
		if j := strings.LastIndex(body, "}"); j > i {
			body = body[i : j+1]
		}
	}

	var resp struct {
		Sites *[]domain.Endpoint `json:"sites"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.Sites == nil {
		return nil, fmt.Errorf("%w: missing sites array", ErrMalformedResponse)
	}
	return *resp.Sites, nil
}

func unwrapFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	// optional language tag up to the first newline
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// statusError classifies an HTTP status from a provider. Rate limiting and
// server errors are retryable.
func statusError(provider string, status int, body string) error {
	const maxBody = 256
	if len(body) > maxBody {
		body = body[:maxBody]
	}

	err := fmt.Errorf("%s: unexpected status %d: %s", provider, status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return retry.Retryable(err)
	default:
		return err
	}
}

// None never suggests anything, so callers always fall back.
type None struct{}

// Suggest always returns ErrMissingCredentials.
func (None) Suggest(context.Context, string) ([]domain.Endpoint, error) {
	return nil, ErrMissingCredentials
}
