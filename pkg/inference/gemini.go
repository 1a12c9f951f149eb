package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// Gemini implements Provider on the Generative Language API.
type Gemini struct {
	service *generativelanguage.Service
	config  *Config
	logger  *slog.Logger
}

// NewGemini creates a Gemini provider. Either an API key or a token source
// must be configured.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	switch {
	case cfg.TokenSource != nil:
		clientOpts = append(clientOpts, option.WithTokenSource(cfg.TokenSource))
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	service, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create service: %w", err))
	}

	return &Gemini{
		service: service,
		config:  cfg,
		logger:  cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.config.Model
}

// GenerateContent sends parts as a single user turn and returns the text of
// the first candidate.
func (g *Gemini) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", WrapError(providerGemini, ErrNoParts)
	}
	start := time.Now()

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: convertParts(parts),
		}},
	}
	if g.config.JSONResponse {
		req.GenerationConfig = &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
		}
	}

	resp, err := g.service.Models.GenerateContent("models/"+g.config.Model, req).Context(ctx).Do()
	if err != nil {
		return "", g.convertError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}

	g.logger.Debug("content generated",
		"model", g.config.Model,
		"parts", len(parts),
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Close is a no-op; the underlying HTTP client is shared.
func (g *Gemini) Close() error {
	return nil
}

func convertParts(parts []Part) []*generativelanguage.Part {
	out := make([]*generativelanguage.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsMedia() {
			out = append(out, &generativelanguage.Part{
				InlineData: &generativelanguage.Blob{
					MimeType: p.InlineData.MimeType,
					Data:     p.InlineData.Data,
				},
			})
			continue
		}
		out = append(out, &generativelanguage.Part{Text: p.Text})
	}
	return out
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *generativelanguage.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", fb.BlockReason)
		}
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (g *Gemini) convertError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return WrapError(providerGemini, err)
	}

	msg := gerr.Message
	if msg == "" {
		msg = strings.TrimSpace(gerr.Body)
	}
	return &APIError{
		StatusCode: gerr.Code,
		Message:    msg,
		Reason:     errorReason(gerr.Body),
		Provider:   providerGemini,
	}
}

// errorReason extracts the first detail reason from a Google API error body,
// falling back to its status string.
func errorReason(body string) string {
	var payload struct {
		Error struct {
			Status  string `json:"status"`
			Details []struct {
				Reason string `json:"reason"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		if strings.Contains(body, ReasonAPIKeyInvalid) {
			return ReasonAPIKeyInvalid
		}
		return ""
	}
	for _, d := range payload.Error.Details {
		if d.Reason != "" {
			return d.Reason
		}
	}
	return payload.Error.Status
}
