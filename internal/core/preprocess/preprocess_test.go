package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/internal/common"
)

func testConfig() common.PreprocessConfig {
	return common.PreprocessConfig{
		DenoiseSigma:         0.5,
		SharpenSigma:         0.5,
		Contrast:             10,
		MaxSkewDegrees:       8,
		SkewStepDegrees:      0.25,
		SkewThresholdDegrees: 0.5,
		MaxDimension:         3000,
		MinDimension:         100,
	}
}

// ruledPage draws dark horizontal bars on a white page, like lines of text.
func ruledPage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.White)
	for y := 30; y < h-30; y += 24 {
		for dy := 0; dy < 4; dy++ {
			for x := 40; x < w-40; x++ {
				img.Set(x, y+dy, color.Black)
			}
		}
	}
	return img
}

func TestEstimateSkew_StraightPage(t *testing.T) {
	angle := EstimateSkew(ruledPage(480, 360), 8, 0.25)
	assert.InDelta(t, 0, angle, 0.26)
}

func TestEstimateSkew_RotatedPage(t *testing.T) {
	skewed := imaging.Rotate(ruledPage(480, 360), 3, color.White)
	angle := EstimateSkew(skewed, 8, 0.25)
	assert.InDelta(t, 3, angle, 0.5)

	skewed = imaging.Rotate(ruledPage(480, 360), -4, color.White)
	angle = EstimateSkew(skewed, 8, 0.25)
	assert.InDelta(t, -4, angle, 0.5)
}

func TestEstimateSkew_BlankPage(t *testing.T) {
	assert.Equal(t, 0.0, EstimateSkew(imaging.New(200, 200, color.White), 8, 0.25))
}

func TestNormalize_SkipsSmallAngles(t *testing.T) {
	p := New(testConfig(), nil)
	out, diag, err := p.Normalize(ruledPage(480, 360))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.False(t, diag.Rotated)
	assert.Equal(t, 480, diag.Width)
}

func TestNormalize_CorrectsSkew(t *testing.T) {
	p := New(testConfig(), nil)
	out, diag, err := p.Normalize(imaging.Rotate(ruledPage(480, 360), 3, color.White))
	require.NoError(t, err)
	assert.True(t, diag.Rotated)
	assert.InDelta(t, 3, diag.SkewDegrees, 0.5)
	// the corrected page should now look straight
	assert.InDelta(t, 0, EstimateSkew(out, 8, 0.25), 0.6)
}

func TestNormalize_Deterministic(t *testing.T) {
	p := New(testConfig(), nil)
	in := imaging.Rotate(ruledPage(300, 200), 2, color.White)
	a, _, err := p.Normalize(in)
	require.NoError(t, err)
	b, _, err := p.Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalize_UpscalesTinyPages(t *testing.T) {
	p := New(testConfig(), nil)
	_, diag, err := p.Normalize(imaging.New(50, 40, color.White))
	require.NoError(t, err)
	assert.True(t, diag.Resized)
	assert.Equal(t, 100, diag.Width)
}

func TestNormalize_RejectsEmpty(t *testing.T) {
	p := New(testConfig(), nil)
	_, _, err := p.Normalize(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidDocument))

	_, _, err = p.Normalize(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, common.ErrInvalidDocument)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, ruledPage(64, 64)))
	img, format, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, img.Bounds().Dx())

	_, _, err = DecodeBytes([]byte("not an image"))
	assert.ErrorIs(t, err, common.ErrInvalidDocument)
}
