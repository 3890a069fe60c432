package llm

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when no API credential is available.
var ErrNotConfigured = errors.New("llm api key is not configured")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends a single prompt and returns the raw model text
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "gemini" or "openai"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the provider
	APIKey string

	// BaseURL for OpenAI-compatible endpoints (LM Studio, vLLM, ...)
	BaseURL string

	MaxTokens   int
	Temperature float64

	// Timeout bounds a single call; zero leaves the client default
	Timeout time.Duration
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
