//go:build cgo

package native

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Engine recognizes text lines with a fresh gosseract client per page.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

func New(cfg Config) *Engine {
	return &Engine{cfg: withDefaults(cfg), clientFactory: gosseract.NewClient}
}

func (e *Engine) Recognize(ctx context.Context, doc entity.Document) (entity.EngineResult, error) {
	if doc.Image == nil {
		return entity.EngineResult{}, fmt.Errorf("document has no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, doc.Image); err != nil {
		return entity.EngineResult{}, fmt.Errorf("encode page: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return entity.EngineResult{}, err
	}

	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return entity.EngineResult{}, fmt.Errorf("set tessdata: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return entity.EngineResult{}, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return entity.EngineResult{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if e.cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.cfg.DPI)); err != nil {
			return entity.EngineResult{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return entity.EngineResult{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return entity.EngineResult{}, fmt.Errorf("recognize lines: %w", err)
	}
	lines := make([]lineBox, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, lineBox{Text: b.Word, Rect: b.Box, Confidence: b.Confidence})
	}
	return entity.EngineResult{Lines: spansFromBoxes(lines)}, nil
}
