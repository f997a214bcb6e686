package azure

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

type fakeOCR struct {
	result computervision.OcrResult
	err    error
	read   int
}

func (f *fakeOCR) RecognizePrintedTextInStream(_ context.Context, _ bool, img io.ReadCloser, _ computervision.OcrLanguages) (computervision.OcrResult, error) {
	b, _ := io.ReadAll(img)
	f.read = len(b)
	return f.result, f.err
}

func strp(s string) *string { return &s }

func words(ws ...string) *[]computervision.OcrWord {
	out := make([]computervision.OcrWord, 0, len(ws))
	for _, w := range ws {
		out = append(out, computervision.OcrWord{Text: strp(w)})
	}
	return &out
}

func TestRecognize(t *testing.T) {
	fake := &fakeOCR{result: computervision.OcrResult{
		Regions: &[]computervision.OcrRegion{{
			Lines: &[]computervision.OcrLine{
				{BoundingBox: strp("10,20,300,18"), Words: words("TAX", "INVOICE")},
				{BoundingBox: strp("bad"), Words: words("Total", "1180.00")},
				{Words: &[]computervision.OcrWord{}},
			},
		}},
	}}
	eng := newWithClient(Config{Confidence: 0.85}, fake, nil)

	res, err := eng.Recognize(context.Background(), entity.Document{Image: image.NewGray(image.Rect(0, 0, 4, 4))})
	require.NoError(t, err)
	assert.Positive(t, fake.read)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "TAX INVOICE", res.Lines[0].Text)
	assert.Equal(t, entity.Region{X: 10, Y: 20, W: 300, H: 18}, res.Lines[0].Region)
	assert.Equal(t, 0.85, res.Lines[0].Confidence)
	assert.True(t, res.Lines[1].Region.Empty())
}

func TestRecognize_Error(t *testing.T) {
	eng := newWithClient(Config{}, &fakeOCR{err: errors.New("401")}, nil)
	_, err := eng.Recognize(context.Background(), entity.Document{Image: image.NewGray(image.Rect(0, 0, 4, 4))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure ocr")
}
