package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// darkLuma is the gray level below which a pixel counts as ink for skew estimation.
const darkLuma = 128

// maxSkewSamples bounds the ink pixels sampled per page.
const maxSkewSamples = 250_000

// Preprocessor normalizes page images before recognition. It holds no
// per-document state and is safe for concurrent use.
type Preprocessor struct {
	cfg    common.PreprocessConfig
	logger *slog.Logger
}

func New(cfg common.PreprocessConfig, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SkewStepDegrees <= 0 {
		cfg.SkewStepDegrees = 0.25
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Decode reads an encoded image (png, jpeg, gif, tiff, bmp, webp).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", common.NewAppError("INVALID_DOCUMENT", "decode image", fmt.Errorf("%w: %v", common.ErrInvalidDocument, err))
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(b []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(b))
}

// Normalize converts the page to grayscale, denoises it, enhances local
// contrast and corrects skew. The input image is not modified.
func (p *Preprocessor) Normalize(img image.Image) (image.Image, entity.PreprocessDiagnostic, error) {
	var diag entity.PreprocessDiagnostic
	if img == nil || img.Bounds().Empty() {
		return nil, diag, common.NewAppError("INVALID_DOCUMENT", "empty image", common.ErrInvalidDocument)
	}
	start := time.Now()

	var out image.Image = img
	out, diag.Resized = p.fit(out)

	gray := imaging.Grayscale(out)
	if p.cfg.DenoiseSigma > 0 {
		gray = imaging.Blur(gray, p.cfg.DenoiseSigma)
	}
	if p.cfg.Contrast != 0 {
		gray = imaging.AdjustContrast(gray, p.cfg.Contrast)
	}
	if p.cfg.SharpenSigma > 0 {
		gray = imaging.Sharpen(gray, p.cfg.SharpenSigma)
	}

	angle := EstimateSkew(gray, p.cfg.MaxSkewDegrees, p.cfg.SkewStepDegrees)
	diag.SkewDegrees = angle
	if math.Abs(angle) >= p.cfg.SkewThresholdDegrees && angle != 0 {
		gray = imaging.Rotate(gray, -angle, color.White)
		diag.Rotated = true
	}

	b := gray.Bounds()
	diag.Width, diag.Height = b.Dx(), b.Dy()

	p.logger.Debug("preprocess.ok",
		"width", diag.Width,
		"height", diag.Height,
		"skew_deg", angle,
		"rotated", diag.Rotated,
		"resized", diag.Resized,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return gray, diag, nil
}

// fit clamps the longest side to [MinDimension, MaxDimension].
func (p *Preprocessor) fit(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	switch {
	case p.cfg.MaxDimension > 0 && longest > p.cfg.MaxDimension:
		return imaging.Fit(img, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos), true
	case p.cfg.MinDimension > 0 && longest < p.cfg.MinDimension:
		scale := float64(p.cfg.MinDimension) / float64(longest)
		return imaging.Resize(img, int(math.Round(float64(b.Dx())*scale)), 0, imaging.Lanczos), true
	}
	return img, false
}

// EstimateSkew returns the dominant text-line angle in degrees, counter-clockwise
// positive, searched over [-maxDeg, maxDeg]. It projects ink pixels onto the
// rotated vertical axis and picks the angle whose row histogram is sharpest.
// Returns 0 for blank pages or when no angle beats the unrotated projection.
func EstimateSkew(img image.Image, maxDeg, step float64) float64 {
	if maxDeg <= 0 || step <= 0 {
		return 0
	}
	xs, ys := inkSamples(img)
	if len(xs) < 16 {
		return 0
	}
	b := img.Bounds()
	diag := int(math.Ceil(math.Hypot(float64(b.Dx()), float64(b.Dy()))))
	hist := make([]int, 2*diag+3)

	score := func(deg float64) float64 {
		clear(hist)
		sin, cos := math.Sincos(deg * math.Pi / 180)
		for i := range xs {
			r := int(math.Round(ys[i]*cos+xs[i]*sin)) + diag + 1
			if r >= 0 && r < len(hist) {
				hist[r]++
			}
		}
		var s float64
		for _, c := range hist {
			s += float64(c) * float64(c)
		}
		return s
	}

	best, bestScore := 0.0, score(0)
	steps := int(math.Round(maxDeg / step))
	for i := -steps; i <= steps; i++ {
		if i == 0 {
			continue
		}
		deg := float64(i) * step
		if s := score(deg); s > bestScore {
			best, bestScore = deg, s
		}
	}
	return best
}

// inkSamples returns centered coordinates of dark pixels, subsampled on a grid.
func inkSamples(img image.Image) ([]float64, []float64) {
	b := img.Bounds()
	area := b.Dx() * b.Dy()
	stride := 1
	if area > maxSkewSamples {
		stride = int(math.Ceil(math.Sqrt(float64(area) / maxSkewSamples)))
	}
	cx := float64(b.Min.X+b.Max.X) / 2
	cy := float64(b.Min.Y+b.Max.Y) / 2
	var xs, ys []float64
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		for x := b.Min.X; x < b.Max.X; x += stride {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y < darkLuma {
				xs = append(xs, float64(x)-cx)
				ys = append(ys, float64(y)-cy)
			}
		}
	}
	return xs, ys
}
