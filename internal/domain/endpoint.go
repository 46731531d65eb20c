// Package domain holds the types shared by the submission pipeline.
package domain

import (
	"net/url"
	"strings"
)

// URLPlaceholder marks where the encoded target URL goes in a template.
const URLPlaceholder = "{URL}"

// Endpoint is a ping service that accepts a URL through a GET request.
type Endpoint struct {
	Name        string `json:"name"        yaml:"name"`
	Description string `json:"description" yaml:"description"`
	URLTemplate string `json:"urlTemplate" yaml:"url_template"`
}

// HasPlaceholder reports whether the template can carry a target URL.
func (e Endpoint) HasPlaceholder() bool {
	return strings.Contains(e.URLTemplate, URLPlaceholder)
}

// Problem returns why e cannot be pinged as an HTTPS GET, or "".
func (e Endpoint) Problem() string {
	if strings.TrimSpace(e.Name) == "" {
		return "missing name"
	}
	if strings.TrimSpace(e.URLTemplate) == "" {
		return "missing URL template"
	}
	if !e.HasPlaceholder() {
		return "URL template has no " + URLPlaceholder + " placeholder"
	}

	u, err := url.Parse(strings.ReplaceAll(e.URLTemplate, URLPlaceholder, "x"))
	if err != nil || u.Host == "" {
		return "URL template is not a valid URL"
	}
	if u.Scheme != "https" {
		return "URL template must use HTTPS"
	}
	return ""
}

// ManualLink is a submission destination that needs a human and a login.
type ManualLink struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}
