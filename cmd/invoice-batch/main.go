package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	"github.com/joseph-ayodele/invoice2order/internal/export"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
	"github.com/joseph-ayodele/invoice2order/internal/services/runs"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use an in-memory SQLite run ledger")
		dir     = flag.String("dir", "", "directory of invoices to process (required)")
		out     = flag.String("out", "", "output XLSX path (defaults to orders.xlsx beside --dir)")
		jsonDir = flag.String("json", "", "directory to write one order payload JSON per mapped page (optional)")
		force   = flag.Bool("force", false, "reprocess pages already mapped in the ledger")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "orders.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	processor, err := core.FromConfig(cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	runsRepo := repository.NewRunRepository(db, logger)
	loader := ingest.NewLoader(cfg.OCR, cfg.Ingest, nil, logger)
	svc := runs.NewService(processor, runsRepo, loader, nil, logger)

	logger.Info("starting ingestion", "dir", *dir)
	files, stats, err := loader.LoadDirectory(ctx, *dir)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}

	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			logger.Error("failed to create json output directory", "dir", *jsonDir, "error", err)
			os.Exit(1)
		}
	}

	counts := map[constants.RunStatus]int{}
	var batch []repository.Run
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		for _, doc := range f.Documents {
			outcome := svc.ProcessDocument(ctx, doc, f.Hash, *force)
			if outcome.Run == nil {
				logger.Error("failed to record page", "path", f.Path, "page", doc.PageIndex, "error", outcome.Err)
				continue
			}
			batch = append(batch, *outcome.Run)
			status := outcome.Run.Status
			if outcome.Duplicate && status == constants.RunStatusMapped {
				status = constants.RunStatusDuplicate
			}
			counts[status]++

			if *jsonDir != "" && outcome.Result.Payload != nil {
				if err := writePayload(*jsonDir, outcome.Result.Payload.OrderID, outcome.Result.Payload); err != nil {
					logger.Error("failed to write payload", "order_id", outcome.Result.Payload.OrderID, "error", err)
				}
			}
		}
	}

	logger.Info("exporting to XLSX", "output", *out, "rows", len(batch))
	xlsx, err := export.RunsXLSX(batch)
	if err != nil {
		logger.Error("failed to export runs", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_loaded", stats.Loaded,
		"files_failed", stats.Failed,
		"pages", len(batch),
		"mapped", counts[constants.RunStatusMapped],
		"duplicate", counts[constants.RunStatusDuplicate],
		"rejected", counts[constants.RunStatusRejected],
		"failed", counts[constants.RunStatusFailed],
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files loaded: %d (failed: %d)\n", stats.Loaded, stats.Failed)
	fmt.Printf("- Pages: %d\n", len(batch))
	fmt.Printf("- Mapped: %d, duplicate: %d, rejected: %d, failed: %d\n",
		counts[constants.RunStatusMapped], counts[constants.RunStatusDuplicate],
		counts[constants.RunStatusRejected], counts[constants.RunStatusFailed])
	fmt.Printf("- Output: %s\n", *out)
}

func writePayload(dir, orderID string, payload any) error {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	name := unsafeName.ReplaceAllString(orderID, "_")
	if name == "" {
		name = uuid.NewString()
	}
	return os.WriteFile(filepath.Join(dir, name+".json"), b, 0o644)
}
