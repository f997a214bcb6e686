// Package native runs tesseract in-process through its C API. The engine is
// only functional in cgo builds; without cgo every Recognize call fails and
// the pool drops the engine like any other failure.
package native

import (
	"image"
	"strings"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

type Config struct {
	Languages   []string
	PSM         int
	TessdataDir string
	DPI         int
}

func (e *Engine) Name() string { return constants.EngineTesseractNative }

// lineBox is one text line as reported by the tesseract API, confidence in 0..100.
type lineBox struct {
	Text       string
	Rect       image.Rectangle
	Confidence float64
}

// spansFromBoxes converts line boxes to spans, dropping blank lines.
func spansFromBoxes(boxes []lineBox) []entity.Span {
	var out []entity.Span
	for _, b := range boxes {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		out = append(out, entity.Span{
			Text:       text,
			Region:     entity.Region{X: b.Rect.Min.X, Y: b.Rect.Min.Y, W: b.Rect.Dx(), H: b.Rect.Dy()},
			Confidence: b.Confidence / 100.0,
		})
	}
	return out
}

func withDefaults(cfg Config) Config {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return cfg
}
