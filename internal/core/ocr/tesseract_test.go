package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t90\t20\t96\tTAX\n" +
	"5\t1\t1\t1\t1\t2\t110\t12\t100\t18\t90\tINVOICE\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t50\t20\t80\tTotal\n" +
	"5\t1\t1\t1\t2\t2\t70\t40\t60\t20\t-1\t1180.00\n"

func TestParseTSV(t *testing.T) {
	lines := ParseTSV(sampleTSV)
	require.Len(t, lines, 2)

	assert.Equal(t, "TAX INVOICE", lines[0].Text)
	assert.Equal(t, entity.Region{X: 10, Y: 10, W: 200, H: 20}, lines[0].Region)
	assert.InDelta(t, 0.93, lines[0].Confidence, 1e-9)

	assert.Equal(t, "Total 1180.00", lines[1].Text)
	assert.InDelta(t, 0.80, lines[1].Confidence, 1e-9)
}

type fakeRunner struct {
	out  string
	err  error
	args []string
	name string
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	if f.err != nil {
		return nil, []byte("failed to load"), f.err
	}
	return []byte(f.out), nil, nil
}

func TestTesseract_Recognize(t *testing.T) {
	r := &fakeRunner{out: sampleTSV}
	eng := NewTesseract(TesseractConfig{PSM: 6, TempDir: t.TempDir()}, r, nil)

	res, err := eng.Recognize(context.Background(), entity.Document{Image: image.NewGray(image.Rect(0, 0, 8, 8))})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, "tsv", r.args[len(r.args)-1])
	assert.Contains(t, strings.Join(r.args, " "), "--psm 6")
	assert.Len(t, res.Lines, 2)
}

func TestTesseract_Errors(t *testing.T) {
	eng := NewTesseract(TesseractConfig{TempDir: t.TempDir()}, &fakeRunner{err: errors.New("exit 1")}, nil)
	_, err := eng.Recognize(context.Background(), entity.Document{Image: image.NewGray(image.Rect(0, 0, 8, 8))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")

	_, err = eng.Recognize(context.Background(), entity.Document{})
	assert.Error(t, err)
}

func TestTextLayer(t *testing.T) {
	res, err := TextLayer{}.Recognize(context.Background(), entity.Document{Text: "a\r\n\nb\n"})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 1.0, res.Lines[1].Confidence)

	_, err = TextLayer{}.Recognize(context.Background(), entity.Document{Text: "  "})
	assert.Error(t, err)
}
