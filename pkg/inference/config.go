package inference

import (
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API endpoint override; empty uses the library default

	// Auth: an API key, or a token source (e.g. Application Default Credentials)
	APIKey      string
	TokenSource oauth2.TokenSource

	// Model is the generative model name without the "models/" prefix.
	Model string

	// JSONResponse asks the model for application/json output.
	JSONResponse bool

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API endpoint, e.g. "http://localhost:8080/".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithTokenSource authenticates with OAuth2 tokens instead of an API key.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Config) { c.TokenSource = ts }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithJSONResponse toggles JSON response mode.
func WithJSONResponse(enabled bool) Option {
	return func(c *Config) { c.JSONResponse = enabled }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// DefaultConfig returns sensible defaults for Gemini.
func DefaultConfig() *Config {
	return &Config{
		Model:   DefaultModel,
		Timeout: 30 * time.Second,
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
