// Package catalog holds the built-in ping services, the user-defined custom
// endpoints and the manual submission links.
package catalog

import (
	"strings"

	"github.com/jonesrussell/seo-pinger/internal/domain"
)

var builtin = []domain.Endpoint{
	{
		Name:        "Google",
		Description: "Google's official sitemap ping service.",
		URLTemplate: "https://www.google.com/ping?sitemap={URL}",
	},
	{
		Name:        "Bing & Yahoo!",
		Description: "Bing's service also notifies Yahoo!",
		URLTemplate: "https://www.bing.com/ping?sitemap={URL}",
	},
	{
		Name:        "Yandex",
		Description: "Ping service for the Yandex search engine.",
		URLTemplate: "https://webmaster.yandex.com/ping.xml?sitemap={URL}",
	},
	{
		Name:        "Seznam.cz",
		Description: "Ping service for the Czech search engine.",
		URLTemplate: "https://search.seznam.cz/ping?sitemap={URL}",
	},
	{
		Name:        "Internet Archive",
		Description: "Saves your page to the Wayback Machine.",
		URLTemplate: "https://web.archive.org/save/{URL}",
	},
	{
		Name:        "Weblogs.com",
		Description: "A popular ping service for blogs and websites.",
		URLTemplate: "https://rpc.weblogs.com/pingSiteForm?name={URL}&url={URL}",
	},
	{
		Name:        "FeedBurner",
		Description: "Google's feed management ping service.",
		URLTemplate: "https://feedburner.google.com/fb/a/pingSubmit?bloglink={URL}",
	},
	{
		Name:        "Google Blog Search",
		Description: "Notifies Google Blog Search of content updates.",
		URLTemplate: "https://blogsearch.google.com/ping?url={URL}",
	},
	{
		Name:        "Ping-O-Matic",
		Description: "Service that pings multiple search engines.",
		URLTemplate: "https://pingomatic.com/ping/?title={URL}&blogurl={URL}&rssurl={URL}" +
			"&chk_weblogscom=on&chk_blogs=on&chk_feedburner=on&chk_newsgator=on&chk_myyahoo=on" +
			"&chk_pubsubcom=on&chk_blogdigger=on&chk_weblogalot=on&chk_newsisfree=on" +
			"&chk_topicexchange=on&chk_google=on&chk_tailrank=on&chk_skygrid=on" +
			"&chk_collecta=on&chk_superfeedr=on",
	},
}

// Default returns the built-in ping services in their fixed order. The
// returned slice is a copy.
func Default() []domain.Endpoint {
	out := make([]domain.Endpoint, len(builtin))
	copy(out, builtin)
	return out
}

// IsBuiltin reports whether name matches a built-in service, ignoring case.
func IsBuiltin(name string) bool {
	return indexOf(builtin, strings.TrimSpace(name)) >= 0
}

var manualLinks = []domain.ManualLink{
	{
		Name:        "Google Search Console",
		Description: "Submit sitemaps and request indexing after signing in.",
		URL:         "https://search.google.com/search-console",
	},
	{
		Name:        "Bing Webmaster Tools",
		Description: "Submit URLs to Bing after verifying site ownership.",
		URL:         "https://www.bing.com/webmasters",
	},
}

// ManualLinks returns destinations that need a human and a console login.
// They are never pinged.
func ManualLinks() []domain.ManualLink {
	out := make([]domain.ManualLink, len(manualLinks))
	copy(out, manualLinks)
	return out
}
