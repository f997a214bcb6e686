package ocr

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Recognizer is one text-recognition back-end. Implementations read
// doc.Image (already preprocessed) or doc.Text and return lines with
// confidences in [0,1]. Engine name and weight are filled in by the Pool.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, doc entity.Document) (entity.EngineResult, error)
}

// Engine is a Recognizer with its static priority weight and time budget.
type Engine struct {
	Recognizer
	Weight  float64
	Timeout time.Duration
}
