package core

import (
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/consolidate"
	"github.com/joseph-ayodele/invoice2order/internal/core/extract"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr/engines"
	"github.com/joseph-ayodele/invoice2order/internal/core/order"
	"github.com/joseph-ayodele/invoice2order/internal/core/preprocess"
	"github.com/joseph-ayodele/invoice2order/internal/core/validate"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
	"github.com/joseph-ayodele/invoice2order/internal/llm/providers"
)

// FromConfig assembles a Processor from cfg. A hosted LLM provider without an
// API key is skipped and extraction runs on the fallback alone.
func FromConfig(cfg *common.Config, runner ocr.Runner, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := engines.NewPool(cfg.OCR, runner, logger)
	if err != nil {
		return nil, err
	}

	var model llm.Completer
	switch {
	case cfg.LLM.APIKey == "" && cfg.LLM.Provider != constants.ProviderOllama:
		logger.Warn("llm.disabled", "provider", cfg.LLM.Provider, "reason", "no api key")
	default:
		model, err = providers.FromConfig(cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("llm.enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	return NewProcessor(
		logger,
		preprocess.New(cfg.Preprocess, logger),
		pool,
		consolidate.New(cfg.Consolidation, logger),
		extract.New(model, cfg.LLM, logger),
		validate.New(cfg.Validation, logger),
		order.New(cfg.Order, time.Now),
	), nil
}
