package submission

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DedupPolicy controls how repeated URLs in a batch are handled.
type DedupPolicy string

const (
	// DedupPreserve keeps every line, repeats included.
	DedupPreserve DedupPolicy = "preserve"
	// DedupUnique keeps the first occurrence of each URL.
	DedupUnique DedupPolicy = "unique"
)

// DedupPolicies lists the accepted policy names.
var DedupPolicies = []string{string(DedupPreserve), string(DedupUnique)}

// ErrEmptyBatch is returned when no URL remains after normalisation.
var ErrEmptyBatch = errors.New("no URLs to submit")

// InvalidURL names a rejected input line.
type InvalidURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ValidationError lists every URL that failed validation.
type ValidationError struct {
	Invalid []InvalidURL
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Invalid))
	for i, inv := range e.Invalid {
		parts[i] = fmt.Sprintf("%q (%s)", inv.URL, inv.Reason)
	}
	return "invalid URLs: " + strings.Join(parts, ", ")
}

// ParseInput splits raw text into URLs, one per line. Lines are trimmed and
// empty lines dropped.
func ParseInput(raw string, policy DedupPolicy) []string {
	lines := strings.Split(raw, "\n")
	return Normalize(lines, policy)
}

// Normalize trims urls, drops blanks and applies policy. Order is kept.
func Normalize(urls []string, policy DedupPolicy) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{})

	for _, line := range urls {
		u := strings.TrimSpace(line)
		if u == "" {
			continue
		}
		if policy == DedupUnique {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
		}
		out = append(out, u)
	}
	return out
}

// Validate checks that every URL is absolute http(s) with a host.
func Validate(urls []string) error {
	if len(urls) == 0 {
		return ErrEmptyBatch
	}

	var invalid []InvalidURL
	for _, raw := range urls {
		if reason := checkURL(raw); reason != "" {
			invalid = append(invalid, InvalidURL{URL: raw, Reason: reason})
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Invalid: invalid}
	}
	return nil
}

func checkURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "not a valid URL"
	}
	if !u.IsAbs() {
		return "URL must be absolute"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "scheme must be http or https"
	}
	if u.Hostname() == "" {
		return "missing host"
	}
	return ""
}

// IsValidationError reports whether err rejects the input as a whole.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrEmptyBatch) || errors.As(err, &ve)
}
