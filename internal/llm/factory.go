package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty API key yields ErrNotConfigured so callers can start without a
// credential and fail per request instead.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	if config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	switch strings.ToLower(config.Provider) {
	case "gemini", "google", "":
		return NewGeminiProvider(ctx, config)

	case "openai":
		return NewOpenAIProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai)", config.Provider)
	}
}
