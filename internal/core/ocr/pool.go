package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Pool runs every configured engine over a document. Engine runs are
// admitted through a semaphore shared by all documents using the pool.
type Pool struct {
	engines []Engine
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

func NewPool(engines []Engine, workers int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		engines: append([]Engine(nil), engines...),
		sem:     semaphore.NewWeighted(int64(workers)),
		logger:  logger,
	}
}

// Engines returns the configured engine names in priority order.
func (p *Pool) Engines() []string {
	out := make([]string, 0, len(p.engines))
	for _, e := range SortEngines(p.engines) {
		out = append(out, e.Name())
	}
	return out
}

type outcome struct {
	res entity.EngineResult
	err error
}

// Recognize runs each engine once, concurrently. Failed engines are left out
// of the returned results and reported in the diagnostics. The error is
// non-nil only when no engine produced text.
func (p *Pool) Recognize(ctx context.Context, doc entity.Document) ([]entity.EngineResult, []entity.EngineDiagnostic, error) {
	if len(p.engines) == 0 {
		return nil, nil, common.NewAppError("ALL_ENGINES_FAILED", "no recognizer engines configured", common.ErrAllEnginesFailed)
	}

	diags := make([]entity.EngineDiagnostic, len(p.engines))
	results := make([]*entity.EngineResult, len(p.engines))

	var wg sync.WaitGroup
	for i, e := range p.engines {
		wg.Add(1)
		go func(i int, e Engine) {
			defer wg.Done()
			start := time.Now()
			res, err := p.runOne(ctx, e, doc)
			diags[i] = entity.EngineDiagnostic{
				Engine:    e.Name(),
				OK:        err == nil,
				Lines:     len(res.Lines),
				ElapsedMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				diags[i].Error = err.Error()
				p.logger.Warn("ocr.engine.degraded",
					"doc_id", doc.ID,
					"engine", e.Name(),
					"error", err,
					"elapsed_ms", diags[i].ElapsedMS,
				)
				return
			}
			p.logger.Info("ocr.engine.ok",
				"doc_id", doc.ID,
				"engine", e.Name(),
				"lines", len(res.Lines),
				"elapsed_ms", diags[i].ElapsedMS,
			)
			results[i] = &res
		}(i, e)
	}
	wg.Wait()

	var out []entity.EngineResult
	var errs []string
	for i, r := range results {
		if r != nil {
			out = append(out, *r)
		} else {
			errs = append(errs, diags[i].Engine+": "+diags[i].Error)
		}
	}
	if len(out) == 0 {
		return nil, diags, common.NewAppError("ALL_ENGINES_FAILED", strings.Join(errs, "; "), common.ErrAllEnginesFailed)
	}
	sortResults(out)
	return out, diags, nil
}

// runOne runs a single engine under its timeout, which also covers the wait
// for a worker slot. An engine that ignores its context is abandoned when the
// deadline passes; its semaphore slot is held until it actually returns.
func (p *Pool) runOne(ctx context.Context, e Engine, doc entity.Document) (entity.EngineResult, error) {
	ectx, cancel := common.WithTimeout(ctx, e.Timeout)
	defer cancel()
	if err := p.sem.Acquire(ectx, 1); err != nil {
		return entity.EngineResult{}, fmt.Errorf("%w: admission: %v", common.ErrEngineFailure, err)
	}

	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := e.Recognize(ectx, doc)
		done <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ectx.Done():
		o.err = ectx.Err()
	}
	if o.err != nil {
		if errors.Is(o.err, common.ErrEngineFailure) {
			return entity.EngineResult{}, o.err
		}
		return entity.EngineResult{}, fmt.Errorf("%w: %v", common.ErrEngineFailure, o.err)
	}

	res := entity.EngineResult{Engine: e.Name(), Weight: e.Weight}
	for _, l := range o.res.Lines {
		l.Text = NormalizeLine(l.Text)
		if l.Text == "" {
			continue
		}
		l.Confidence = clamp01(l.Confidence)
		res.Lines = append(res.Lines, l)
	}
	if len(res.Lines) == 0 {
		return entity.EngineResult{}, fmt.Errorf("%w: no text recognized", common.ErrEngineFailure)
	}
	return res, nil
}

// SortEngines orders engines by weight desc, then name.
func SortEngines(engines []Engine) []Engine {
	out := append([]Engine(nil), engines...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

func sortResults(rs []entity.EngineResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Weight != rs[j].Weight {
			return rs[i].Weight > rs[j].Weight
		}
		return rs[i].Engine < rs[j].Engine
	})
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
