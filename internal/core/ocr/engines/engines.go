// Package engines builds the recognizer pool from configuration.
package engines

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr/azure"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr/native"
)

// FromConfig instantiates every engine named in cfg.Engines.
func FromConfig(cfg common.OCRConfig, runner ocr.Runner, logger *slog.Logger) ([]ocr.Engine, error) {
	out := make([]ocr.Engine, 0, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		var r ocr.Recognizer
		switch ec.Name {
		case constants.EngineTesseract:
			r = ocr.NewTesseract(ocr.TesseractConfig{
				Binary:      cfg.Tesseract,
				Language:    cfg.Language,
				PSM:         cfg.PSM,
				TessdataDir: cfg.TessdataDir,
				TempDir:     cfg.TempDir,
			}, runner, logger)
		case constants.EngineTesseractNative:
			r = native.New(native.Config{
				Languages:   []string{cfg.Language},
				PSM:         cfg.PSM,
				TessdataDir: cfg.TessdataDir,
				DPI:         cfg.PDFDPI,
			})
		case constants.EngineAzureVision:
			r = azure.New(azure.Config{
				Endpoint:   cfg.AzureEndpoint,
				APIKey:     cfg.AzureKey,
				Confidence: cfg.AzureConfidence,
			}, logger)
		case constants.EngineText:
			r = ocr.TextLayer{}
		default:
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", ec.Name), common.ErrInvalidInput)
		}
		timeout := ec.Timeout
		if timeout <= 0 {
			timeout = cfg.EngineTimeout
		}
		out = append(out, ocr.Engine{Recognizer: r, Weight: ec.Weight, Timeout: timeout})
	}
	return out, nil
}

// NewPool is FromConfig plus ocr.NewPool.
func NewPool(cfg common.OCRConfig, runner ocr.Runner, logger *slog.Logger) (*ocr.Pool, error) {
	es, err := FromConfig(cfg, runner, logger)
	if err != nil {
		return nil, err
	}
	return ocr.NewPool(es, cfg.Workers, logger), nil
}
