package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// TextLayer is a recognizer over a document's embedded text, e.g. a PDF
// text layer or a plain-text upload. It has no geometry.
type TextLayer struct {
	Confidence float64
}

func (TextLayer) Name() string { return constants.EngineText }

func (t TextLayer) Recognize(_ context.Context, doc entity.Document) (entity.EngineResult, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return entity.EngineResult{}, errors.New("document has no text layer")
	}
	conf := t.Confidence
	if conf <= 0 {
		conf = 1
	}
	var res entity.EngineResult
	for _, ln := range strings.Split(strings.ReplaceAll(doc.Text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		res.Lines = append(res.Lines, entity.Span{Text: ln, Confidence: conf})
	}
	return res, nil
}
