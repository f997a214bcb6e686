package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/extract"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/llm/providers"
)

// extract runs the field extractor over a plain-text invoice N times and
// logs each record, to check how stable the model's answers are.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <text-file> [times]")
		os.Exit(2)
	}
	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read input", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 3
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	model, err := providers.FromConfig(cfg.LLM, logger)
	if err != nil {
		logger.Error("build provider", "error", err)
		os.Exit(1)
	}
	ex := extract.New(model, cfg.LLM, logger)
	text := entity.ConsolidatedText{Text: string(raw), Confidence: 1}

	methods := map[string]int{}
	for i := 1; i <= times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+15*time.Second)
		start := time.Now()
		rec, outcome := ex.Extract(ctx, text)
		cancel()

		methods[string(outcome.Method)]++
		b, _ := json.Marshal(rec)
		attrs := []any{
			"iter", i,
			"method", outcome.Method,
			"fields", len(rec.Populated()),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"record", json.RawMessage(b),
		}
		if outcome.Err != nil {
			attrs = append(attrs, "error", outcome.Err)
		}
		logger.Info("extract.run", attrs...)
	}
	logger.Info("extract.summary", "runs", times, "methods", methods)
}
