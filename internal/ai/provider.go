// Package ai provides optional multimodal enrichment of canonical invoices
// through LLM providers.
package ai

import (
	"context"
	"fmt"

	"github.com/zugfix/invoice-canon-service/internal/models"
)

// Provider abstracts one LLM backend. Implementations return the raw model
// output for a system/user prompt pair; parsing is the enricher's job.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// NewProvider creates the configured provider, or nil when the provider has
// no API key. A nil provider disables enrichment without failing the run.
func NewProvider(cfg models.AIConfig) (Provider, error) {
	switch cfg.DefaultProvider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.DefaultProvider)
	}
}
