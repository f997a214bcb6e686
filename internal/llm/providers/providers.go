// Package providers builds the configured llm.Completer.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
	"github.com/joseph-ayodele/invoice2order/internal/llm/anthropic"
	"github.com/joseph-ayodele/invoice2order/internal/llm/ollama"
	"github.com/joseph-ayodele/invoice2order/internal/llm/openai"
)

// FromConfig returns exactly one provider, wrapped in a rate limiter when
// cfg.RateLimit is positive.
func FromConfig(cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	var c llm.Completer
	switch cfg.Provider {
	case constants.ProviderOpenAI:
		c = openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case constants.ProviderAnthropic:
		c = anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case constants.ProviderOllama:
		c = ollama.NewClient(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
	return llm.NewRateLimited(c, cfg.RateLimit), nil
}
