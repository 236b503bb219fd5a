package platform

import (
	"net/http"
	"sort"
	"time"
)

// Options configures an adapter. Zero values fall back to the vendor
// defaults.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	PlatformUserID string
	ClientID       string
	ClientSecret   string
}

// ClientOption customizes adapter construction.
type ClientOption func(*Options)

// WithBaseURL points the adapter at a different API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *Options) { o.BaseURL = baseURL }
}

// WithHTTPClient replaces the adapter's HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *Options) { o.HTTPClient = c }
}

// WithTimeout sets the per-request deadline of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *Options) { o.Timeout = d }
}

// WithPlatformUserID supplies the account's platform user id so adapters
// that need it for publishing do not depend on a prior GetProfile call.
func WithPlatformUserID(id string) ClientOption {
	return func(o *Options) { o.PlatformUserID = id }
}

// WithAppCredentials supplies the OAuth app credentials some platforms
// require for token refresh.
func WithAppCredentials(clientID, clientSecret string) ClientOption {
	return func(o *Options) {
		o.ClientID = clientID
		o.ClientSecret = clientSecret
	}
}

// Constructor builds an adapter for one access token.
type Constructor func(accessToken string, opts Options) Adapter

var registry = map[Platform]Constructor{
	Instagram: func(token string, opts Options) Adapter { return NewInstagramClient(token, opts) },
	LinkedIn:  func(token string, opts Options) Adapter { return NewLinkedInClient(token, opts) },
	Facebook:  func(token string, opts Options) Adapter { return NewFacebookClient(token, opts) },
	Twitter:   func(token string, opts Options) Adapter { return NewTwitterClient(token, opts) },
	Bluesky:   func(token string, opts Options) Adapter { return NewBlueskyClient(token, opts) },
}

// CreateClient constructs the adapter for platform. Construction performs no
// I/O; adapters hold only the caller's token and may be discarded after use.
func CreateClient(platform string, accessToken string, opts ...ClientOption) (Adapter, error) {
	ctor, ok := registry[Platform(platform)]
	if !ok {
		return nil, &UnsupportedPlatformError{Platform: platform}
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return ctor(accessToken, o), nil
}

// SupportedPlatforms returns every platform with an adapter, sorted.
func SupportedPlatforms() []Platform {
	out := make([]Platform, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsSupported reports whether platform has an adapter.
func IsSupported(platform string) bool {
	_, ok := registry[Platform(platform)]
	return ok
}
