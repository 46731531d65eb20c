package ping

import (
	"net/url"
	"strings"

	"github.com/jonesrussell/seo-pinger/internal/domain"
)

// componentUnescaper restores the characters a URI component leaves alone
// but url.QueryEscape encodes.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s as a single URI component.
func EncodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// BuildURL substitutes the encoded target for every placeholder in
// template. ok is false when template cannot carry a target.
func BuildURL(template, target string) (pingURL string, ok bool) {
	if strings.TrimSpace(template) == "" || !strings.Contains(template, domain.URLPlaceholder) {
		return "", false
	}
	return strings.ReplaceAll(template, domain.URLPlaceholder, EncodeComponent(target)), true
}
