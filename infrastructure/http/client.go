// Package http builds the outbound HTTP clients used for pings and provider calls.
package http

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a whole request when the caller sets no deadline.
	DefaultTimeout = 30 * time.Second

	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 10
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
)

// ClientConfig configures an HTTP client. Zero values take the defaults above.
type ClientConfig struct {
	// Timeout is the client-wide request limit.
	Timeout time.Duration

	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration

	// UserAgent, when set, is added to every request that has none.
	UserAgent string
}

// NewClient creates an HTTP client with a tuned transport.
// If cfg is nil, default values are used.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          orDefault(cfg.MaxIdleConns, DefaultMaxIdleConns),
		MaxIdleConnsPerHost:   orDefault(cfg.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost),
		IdleConnTimeout:       orDefault(cfg.IdleConnTimeout, DefaultIdleConnTimeout),
		ResponseHeaderTimeout: orDefault(cfg.ResponseHeaderTimeout, DefaultResponseHeaderTimeout),
		ExpectContinueTimeout: DefaultExpectContinueTimeout,
		TLSHandshakeTimeout:   orDefault(cfg.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout),
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Timeout:   orDefault(cfg.Timeout, DefaultTimeout),
		Transport: rt,
	}
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}

func orDefault[T int | time.Duration](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}
