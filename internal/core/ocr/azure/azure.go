// Package azure adapts the Azure Computer Vision printed-text OCR API.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

type Config struct {
	Endpoint string
	APIKey   string
	// Confidence is assigned to every line; this API does not report one.
	Confidence float64
}

// ocrAPI is the slice of the SDK client we use, so tests can fake it.
type ocrAPI interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

type Engine struct {
	cfg    Config
	client ocrAPI
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Engine {
	client := computervision.New(cfg.Endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.APIKey)
	return newWithClient(cfg, client, logger)
}

func newWithClient(cfg Config, client ocrAPI, logger *slog.Logger) *Engine {
	if cfg.Confidence <= 0 || cfg.Confidence > 1 {
		cfg.Confidence = 0.9
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, client: client, logger: logger}
}

func (e *Engine) Name() string { return constants.EngineAzureVision }

func (e *Engine) Recognize(ctx context.Context, doc entity.Document) (entity.EngineResult, error) {
	if doc.Image == nil {
		return entity.EngineResult{}, fmt.Errorf("document has no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, doc.Image); err != nil {
		return entity.EngineResult{}, fmt.Errorf("encode page: %w", err)
	}
	result, err := e.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(&buf), computervision.OcrLanguages(computervision.En))
	if err != nil {
		return entity.EngineResult{}, fmt.Errorf("azure ocr: %w", err)
	}
	return entity.EngineResult{Lines: linesFromResult(result, e.cfg.Confidence)}, nil
}

func linesFromResult(result computervision.OcrResult, conf float64) []entity.Span {
	if result.Regions == nil {
		return nil
	}
	var out []entity.Span
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			var words []string
			if line.Words != nil {
				for _, w := range *line.Words {
					if w.Text != nil {
						words = append(words, *w.Text)
					}
				}
			}
			if len(words) == 0 {
				continue
			}
			var box entity.Region
			if line.BoundingBox != nil {
				box = parseBox(*line.BoundingBox)
			}
			out = append(out, entity.Span{Text: strings.Join(words, " "), Region: box, Confidence: conf})
		}
	}
	return out
}

// parseBox reads the "x,y,w,h" box format of the OCR API.
func parseBox(s string) entity.Region {
	parts := strings.Split(s, ",")
	if len(parts) < 4 {
		return entity.Region{}
	}
	v := make([]int, 4)
	for i := range v {
		v[i], _ = strconv.Atoi(strings.TrimSpace(parts[i]))
	}
	return entity.Region{X: v[0], Y: v[1], W: v[2], H: v[3]}
}
