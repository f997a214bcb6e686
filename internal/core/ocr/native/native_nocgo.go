//go:build !cgo

package native

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// ErrUnavailable is returned by Recognize in builds without cgo.
var ErrUnavailable = errors.New("tesseract-native requires a cgo build")

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: withDefaults(cfg)}
}

func (e *Engine) Recognize(context.Context, entity.Document) (entity.EngineResult, error) {
	return entity.EngineResult{}, ErrUnavailable
}
