package lastfm

import (
	"errors"
	"net/http"
	"time"
)

// DefaultBaseURL is the Last.fm API 2.0 endpoint.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

const (
	defaultUserAgent   = "backfill/1.0"
	defaultMaxAttempts = 3
	defaultHTTPTimeout = 30 * time.Second
)

// Config holds client configuration.
type Config struct {
	APIKey     string       // Required
	APISecret  string       // Required: signs every request
	SessionKey string       // Optional: set later with SetSessionKey after logging in
	HTTPClient *http.Client // Optional: defaults to a client with a 30s timeout
	BaseURL    string       // Optional: defaults to DefaultBaseURL
	UserAgent  string       // Optional
	// MaxAttempts bounds tries per call for temporary failures. Zero means 3.
	MaxAttempts int
	Logger      Logger // Optional: receives request diagnostics
}

// Logger receives debug output from the client.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Client talks to the Last.fm API. It is not safe to change the session key
// while requests are in flight.
type Client struct {
	apiKey      string
	apiSecret   string
	sessionKey  string
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	maxAttempts int
	logger      Logger

	auth     *AuthService
	scrobble *ScrobbleService
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("lastfm: APIKey is required")
	}
	if cfg.APISecret == "" {
		return nil, errors.New("lastfm: APISecret is required")
	}

	c := &Client{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		sessionKey:  cfg.SessionKey,
		httpClient:  cfg.HTTPClient,
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}

	c.auth = &AuthService{client: c}
	c.scrobble = &ScrobbleService{client: c}

	return c, nil
}

// Auth returns the login service.
func (c *Client) Auth() *AuthService { return c.auth }

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService { return c.scrobble }

// SetSessionKey stores the key sent with authenticated calls.
func (c *Client) SetSessionKey(key string) { c.sessionKey = key }

func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
