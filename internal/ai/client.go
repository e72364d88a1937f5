package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrQuotaExhausted indicates the configured usage limit for the text
// generation API has been reached for the current window.
var ErrQuotaExhausted = errors.New("text generation quota exhausted")

// Client wraps the Gemini API for text generation. Every call is bounded
// by the configured timeout; callers are expected to hold a deterministic
// fallback for any failure.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	usage   *UsageTracker
	logger  *zap.Logger
}

// NewClient creates a text generation client. usage may be nil when no
// quota tracking is configured.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration, usage *UsageTracker, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("text generation API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
		usage:   usage,
		logger:  logger,
	}, nil
}

// GenerateText produces text for the given prompt. promptContext is
// attached for audit purposes only.
func (c *Client) GenerateText(ctx context.Context, prompt string, promptContext map[string]interface{}) (string, error) {
	if c.usage != nil {
		remaining, err := c.usage.Remaining(ctx, c.model)
		if err == nil && remaining <= 0 {
			return "", ErrQuotaExhausted
		}
		if err := c.usage.RecordUse(ctx, c.model); err != nil {
			c.logger.Warn("Failed to record API usage", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("text generation returned empty response")
	}
	return text, nil
}
