package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-pokedex/pkg/credential"
)

// Factory builds a Provider for an API key.
type Factory func(ctx context.Context, apiKey string) (Provider, error)

// GeminiFactory returns a Factory that builds Gemini providers with opts.
func GeminiFactory(opts ...Option) Factory {
	return func(ctx context.Context, apiKey string) (Provider, error) {
		return NewGemini(ctx, append(opts, WithAPIKey(apiKey))...)
	}
}

// Client is a Provider that owns the API key lifecycle.
//
// The key is loaded from the store on first use, or requested from the
// prompter and saved when the store is empty. When the service rejects the
// key, the stored value is cleared, a replacement is requested and saved,
// and the failed call returns ErrCredentialRejected without being retried.
type Client struct {
	store    credential.Store
	prompter credential.Prompter
	factory  Factory
	logger   *slog.Logger

	mu       sync.Mutex
	provider Provider
	key      string
}

// NewClient creates a credential-aware client. No provider is built until
// the first request.
func NewClient(store credential.Store, prompter credential.Prompter, factory Factory, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store:    store,
		prompter: prompter,
		factory:  factory,
		logger:   logger.With("component", "inference.client"),
	}
}

// GenerateContent implements Provider.
func (c *Client) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	provider, key, err := c.ensureProvider(ctx)
	if err != nil {
		return "", err
	}

	text, err := provider.GenerateContent(ctx, parts)
	if err == nil {
		return text, nil
	}
	if !IsUnauthorized(err) {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.IsRateLimited() || apiErr.IsServerError()) {
			c.logger.Warn("provider unavailable, keeping credential",
				"status", apiErr.StatusCode,
				"rate_limited", apiErr.IsRateLimited(),
			)
		}
		return "", err
	}

	c.logger.Warn("credential rejected, requesting a new one", "error", err)
	if rerr := c.replace(ctx, key); rerr != nil {
		return "", fmt.Errorf("%w: %w (replacement failed: %v)", ErrCredentialRejected, err, rerr)
	}
	return "", fmt.Errorf("%w: %w", ErrCredentialRejected, err)
}

// Reset discards the stored key so the next request asks for a new one.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropProvider()
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	c.logger.Info("credential reset")
	return nil
}

// Close releases the current provider.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropProvider()
	return nil
}

func (c *Client) ensureProvider(ctx context.Context) (Provider, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil {
		return c.provider, c.key, nil
	}

	key, err := c.store.Load()
	if errors.Is(err, credential.ErrNotFound) {
		key, err = c.obtain(ctx)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load credential: %w", err)
	}

	if err := c.build(ctx, key); err != nil {
		return nil, "", err
	}
	return c.provider, c.key, nil
}

// replace swaps out a rejected key. If another caller already replaced it,
// nothing happens.
func (c *Client) replace(ctx context.Context, rejected string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil && c.key != rejected {
		return nil
	}

	c.dropProvider()
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	key, err := c.obtain(ctx)
	if err != nil {
		return err
	}
	return c.build(ctx, key)
}

// obtain asks the prompter for a key and saves it.
func (c *Client) obtain(ctx context.Context) (string, error) {
	if c.prompter == nil {
		return "", credential.ErrNotFound
	}
	key, err := c.prompter.PromptForCredential(ctx)
	if err != nil {
		return "", fmt.Errorf("prompt for credential: %w", err)
	}
	if err := c.store.Save(key); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}
	c.logger.Info("credential saved")
	return key, nil
}

func (c *Client) build(ctx context.Context, key string) error {
	provider, err := c.factory(ctx, key)
	if err != nil {
		return err
	}
	c.provider = provider
	c.key = key
	return nil
}

func (c *Client) dropProvider() {
	if c.provider == nil {
		return
	}
	if err := c.provider.Close(); err != nil {
		c.logger.Warn("provider close failed", "error", err)
	}
	c.provider = nil
	c.key = ""
}

// Ensure Client implements Provider.
var _ Provider = (*Client)(nil)
