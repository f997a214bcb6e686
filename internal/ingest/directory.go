package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice2order/constants"
)

// LoadDirectory walks root, skips hidden entries when configured, and loads
// every file with an allowed extension. Per-file failures are reported in the
// results and do not stop the walk; cancellation does.
func (l *Loader) LoadDirectory(ctx context.Context, root string) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr})
			stats.Failed++
			return nil
		}
		if l.cfg.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		hash, docs, err := l.Load(ctx, path)
		if err != nil {
			l.logger.Warn("ingest.file.failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, Hash: hash, Err: err})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, Hash: hash, Documents: docs})
		stats.Loaded++
		stats.Pages += uint32(len(docs))
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	l.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"loaded", stats.Loaded,
		"pages", stats.Pages,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
