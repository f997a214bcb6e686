package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/consolidate"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr/engines"
	"github.com/joseph-ayodele/invoice2order/internal/core/preprocess"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
)

// runocr loads one file and prints what every configured engine read from
// each page, followed by the consolidated text.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runner := ocr.NewExecRunner()
	loader := ingest.NewLoader(cfg.OCR, cfg.Ingest, runner, logger)
	hash, docs, err := loader.Load(ctx, path)
	if err != nil {
		logger.Error("load", "path", path, "error", err)
		os.Exit(1)
	}
	pool, err := engines.NewPool(cfg.OCR, runner, logger)
	if err != nil {
		logger.Error("build engines", "error", err)
		os.Exit(1)
	}
	pre := preprocess.New(cfg.Preprocess, logger)
	cons := consolidate.New(cfg.Consolidation, logger)

	logger.Info("loaded", "path", path, "content_hash", hash, "pages", len(docs), "engines", pool.Engines())

	failed := false
	for _, doc := range docs {
		fmt.Printf("=== page %d (%s) ===\n", doc.PageIndex+1, doc.ID)
		if doc.Image == nil {
			fmt.Println("[text layer]")
			fmt.Println(doc.Text)
			continue
		}

		start := time.Now()
		img, pdiag, err := pre.Normalize(doc.Image)
		if err != nil {
			logger.Error("preprocess", "page", doc.PageIndex, "error", err)
			failed = true
			continue
		}
		doc.Image = img

		results, diags, err := pool.Recognize(ctx, doc)
		for _, d := range diags {
			logger.Info("engine", "page", doc.PageIndex, "engine", d.Engine, "ok", d.OK, "lines", d.Lines, "elapsed_ms", d.ElapsedMS, "error", d.Error)
		}
		if err != nil {
			logger.Error("recognize", "page", doc.PageIndex, "error", err)
			failed = true
			continue
		}
		for _, r := range results {
			fmt.Printf("--- %s (weight %.2f) ---\n%s\n", r.Engine, r.Weight, r.Text())
		}

		text, err := cons.Consolidate(results)
		if err != nil {
			logger.Error("consolidate", "page", doc.PageIndex, "error", err)
			failed = true
			continue
		}
		fmt.Printf("--- consolidated (confidence %.3f) ---\n%s\n", text.Confidence, text.Text)
		logger.Info("page done",
			"page", doc.PageIndex,
			"skew_degrees", pdiag.SkewDegrees,
			"lines", len(text.Lines),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	if failed {
		os.Exit(1)
	}
}
