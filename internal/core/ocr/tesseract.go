package ocr

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	Binary      string
	Language    string
	PSM         int
	TessdataDir string
	TempDir     string
}

// Tesseract runs the tesseract CLI in TSV mode and groups words into lines.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return constants.EngineTesseract }

func (t *Tesseract) Recognize(ctx context.Context, doc entity.Document) (entity.EngineResult, error) {
	if doc.Image == nil {
		return entity.EngineResult{}, fmt.Errorf("tesseract: document has no image")
	}
	f, err := os.CreateTemp(t.cfg.TempDir, "page-*.png")
	if err != nil {
		return entity.EngineResult{}, fmt.Errorf("tesseract: temp file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if err := png.Encode(f, doc.Image); err != nil {
		_ = f.Close()
		return entity.EngineResult{}, fmt.Errorf("tesseract: encode page: %w", err)
	}
	if err := f.Close(); err != nil {
		return entity.EngineResult{}, fmt.Errorf("tesseract: close page: %w", err)
	}

	args := []string{path, "stdout", "-l", t.cfg.Language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.logger, args...)
	if err != nil {
		return entity.EngineResult{}, fmt.Errorf("tesseract: %w: %s", err, Truncate(string(errb), 512))
	}
	return entity.EngineResult{Lines: ParseTSV(string(out))}, nil
}

type tsvKey struct{ page, block, par, line int }

// ParseTSV groups tesseract TSV word rows into lines. Line confidence is the
// mean word confidence scaled to [0,1]; words reporting -1 are not counted.
func ParseTSV(tsv string) []entity.Span {
	type acc struct {
		words  []string
		region entity.Region
		sum    float64
		n      int
	}
	var order []tsvKey
	lines := map[tsvKey]*acc{}

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		n := atoiAll(cols[1:10])
		key := tsvKey{n[0], n[1], n[2], n[3]}
		a, ok := lines[key]
		if !ok {
			a = &acc{}
			lines[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, text)
		a.region = a.region.Union(entity.Region{X: n[5], Y: n[6], W: n[7], H: n[8]})
		if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 {
			a.sum += conf
			a.n++
		}
	}

	out := make([]entity.Span, 0, len(order))
	for _, k := range order {
		a := lines[k]
		conf := 0.0
		if a.n > 0 {
			conf = a.sum / float64(a.n) / 100
		}
		out = append(out, entity.Span{Text: strings.Join(a.words, " "), Region: a.region, Confidence: conf})
	}
	return out
}

func atoiAll(cols []string) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i], _ = strconv.Atoi(strings.TrimSpace(c))
	}
	return out
}
