package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr"
	"github.com/joseph-ayodele/invoice2order/internal/core/preprocess"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Loader turns input files into one Document per page. PDF pages with a
// usable text layer become text documents; the rest are rasterized.
type Loader struct {
	ocr    common.OCRConfig
	cfg    common.IngestConfig
	runner ocr.Runner
	logger *slog.Logger
}

func NewLoader(ocrCfg common.OCRConfig, cfg common.IngestConfig, runner ocr.Runner, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.NewExecRunner()
	}
	if ocrCfg.Pdftoppm == "" {
		ocrCfg.Pdftoppm = "pdftoppm"
	}
	if ocrCfg.Pdftotext == "" {
		ocrCfg.Pdftotext = "pdftotext"
	}
	if ocrCfg.PDFDPI <= 0 {
		ocrCfg.PDFDPI = 300
	}
	return &Loader{ocr: ocrCfg, cfg: cfg, runner: runner, logger: logger}
}

// Load reads the file at path. It returns the content hash with the pages;
// the hash is set whenever the file could be read.
func (l *Loader) Load(ctx context.Context, path string) (string, []entity.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("abs path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, fmt.Errorf("read: %w", err)
	}
	docs, err := l.LoadBytes(ctx, abs, data)
	return ContentHash(data), docs, err
}

// LoadBytes sniffs the content type of data and splits it into pages.
// source is recorded on each Document.
func (l *Loader) LoadBytes(ctx context.Context, source string, data []byte) ([]entity.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrInvalidDocument)
	}
	hash := ContentHash(data)
	mt := mimetype.Detect(data)
	l.logger.Debug("ingest.load", "source", source, "mime", mt.String(), "bytes", len(data))

	switch {
	case mt.Is("application/pdf"):
		return l.loadPDF(ctx, source, hash, data)
	case strings.HasPrefix(mt.String(), "image/"):
		img, _, err := preprocess.DecodeBytes(data)
		if err != nil {
			return nil, err
		}
		return []entity.Document{{
			ID:     documentID(hash, 0),
			Image:  img,
			Format: constants.IMAGE,
			Source: source,
		}}, nil
	case mt.Is("text/plain"):
		return []entity.Document{{
			ID:     documentID(hash, 0),
			Text:   string(data),
			Format: constants.TEXT,
			Source: source,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", common.ErrInvalidDocument, mt.String())
	}
}

func (l *Loader) loadPDF(ctx context.Context, source, hash string, data []byte) ([]entity.Document, error) {
	dir, err := os.MkdirTemp(l.ocr.TempDir, "i2o-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.logger.Warn("ingest.pdf.cleanup.failed", "dir", dir, "error", err)
		}
	}()

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	texts, err := l.pdfText(ctx, in)
	if err != nil {
		l.logger.Warn("ingest.pdf.text.failed", "source", source, "error", err)
	}
	if l.cfg.MaxPages > 0 && len(texts) > l.cfg.MaxPages {
		texts = texts[:l.cfg.MaxPages]
	}

	var images []image.Image
	if len(texts) == 0 || l.needsOCR(texts) {
		images, err = l.rasterize(ctx, in, dir)
		if err != nil {
			if len(texts) == 0 {
				return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
			}
			l.logger.Warn("ingest.pdf.rasterize.failed", "source", source, "error", err)
		}
	}

	pages := max(len(texts), len(images))
	docs := make([]entity.Document, 0, pages)
	for i := 0; i < pages; i++ {
		d := entity.Document{
			ID:        documentID(hash, i),
			Format:    constants.PDF,
			PageIndex: i,
			Source:    source,
		}
		switch {
		case i < len(texts) && l.hasText(texts[i]):
			d.Text = texts[i]
		case i < len(images):
			d.Image = images[i]
		default:
			l.logger.Warn("ingest.pdf.page.empty", "source", source, "page", i+1)
			continue
		}
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: pdf has no readable pages", common.ErrInvalidDocument)
	}
	l.logger.Debug("ingest.pdf.done", "source", source, "pages", len(docs), "rasterized", len(images))
	return docs, nil
}

func (l *Loader) needsOCR(texts []string) bool {
	for _, t := range texts {
		if !l.hasText(t) {
			return true
		}
	}
	return false
}

func (l *Loader) hasText(t string) bool {
	return len(strings.TrimSpace(t)) >= max(l.cfg.MinTextChars, 1)
}

// pdfText returns the embedded text of each page. pdftotext separates pages
// with form feeds and ends the last page with one.
func (l *Loader) pdfText(ctx context.Context, path string) ([]string, error) {
	out, errb, err := l.runner.Run(ctx, l.ocr.Pdftotext, l.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, ocr.Truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// rasterize renders every page to PNG with pdftoppm and decodes the results in
// page order.
func (l *Loader) rasterize(ctx context.Context, path, dir string) ([]image.Image, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(l.ocr.PDFDPI), "-png"}
	if l.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(l.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := l.runner.Run(ctx, l.ocr.Pdftoppm, l.logger, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, ocr.Truncate(string(errb), 512))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })

	images := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		f, err := os.Open(m)
		if err != nil {
			return nil, err
		}
		img, _, err := preprocess.Decode(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(m), err)
		}
		images = append(images, img)
	}
	return images, nil
}

// pageNumber reads N from ".../page-N.png"; pdftoppm zero-pads N only for
// longer documents.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndexByte(base, '-')
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}
