//go:build !cgo

package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

func TestRecognizeWithoutCgo(t *testing.T) {
	_, err := New(Config{}).Recognize(context.Background(), entity.Document{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
