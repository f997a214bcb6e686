package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/async"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
)

// Processor is the part of core.Processor the service needs.
type Processor interface {
	Process(ctx context.Context, doc entity.Document) (core.Result, error)
}

// Service runs documents through the pipeline and keeps the run ledger.
type Service struct {
	proc   Processor
	runs   repository.RunRepository
	loader *ingest.Loader
	queue  async.Queue
	logger *slog.Logger
}

// NewService wires the service. queue may be nil when only synchronous
// processing is used.
func NewService(proc Processor, runs repository.RunRepository, loader *ingest.Loader, queue async.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, runs: runs, loader: loader, queue: queue, logger: logger}
}

// SetQueue attaches the async queue. The queue's sink is usually s.Record,
// so the two are built in sequence.
func (s *Service) SetQueue(q async.Queue) { s.queue = q }

// PageOutcome is the result of one document page.
type PageOutcome struct {
	Run       *repository.Run
	Result    core.Result
	Err       error
	Duplicate bool
}

// ProcessDocument runs one page synchronously and records it. A page whose
// content already produced a MAPPED run is not processed again unless force
// is set; its stored payload is returned instead.
func (s *Service) ProcessDocument(ctx context.Context, doc entity.Document, hash string, force bool) PageOutcome {
	if !force {
		prior, err := s.priorMapped(ctx, hash, doc.PageIndex)
		if err != nil {
			s.logger.Error("runs.duplicate.lookup_failed", "doc_id", doc.ID, "error", err)
			return PageOutcome{Err: err}
		}
		if prior != nil {
			s.logger.Info("runs.duplicate.content", "doc_id", doc.ID, "run_id", prior.ID, "order_id", prior.OrderID)
			return PageOutcome{Run: prior, Result: resultFromRun(prior), Duplicate: true}
		}
	}

	run := &repository.Run{
		DocumentID:  doc.ID,
		Source:      doc.Source,
		PageIndex:   doc.PageIndex,
		ContentHash: hash,
		Status:      constants.RunStatusRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return PageOutcome{Err: err}
	}

	res, err := s.proc.Process(ctx, doc)
	if ferr := s.finish(ctx, run, res, err); ferr != nil {
		s.logger.Error("runs.record.failed", "run_id", run.ID, "error", ferr)
	}
	return PageOutcome{Run: run, Result: res, Err: err, Duplicate: run.Status == constants.RunStatusDuplicate}
}

// ProcessBytes loads an uploaded file and processes each page in order.
// The error is non-nil only when the file cannot be loaded.
func (s *Service) ProcessBytes(ctx context.Context, name string, data []byte, force bool) ([]PageOutcome, error) {
	docs, err := s.loader.LoadBytes(ctx, name, data)
	if err != nil {
		return nil, err
	}
	hash := ingest.ContentHash(data)
	out := make([]PageOutcome, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.ProcessDocument(ctx, d, hash, force))
	}
	return out, nil
}

// SubmitResult reports what Submit queued.
type SubmitResult struct {
	Path    string
	Hash    string
	RunIDs  []string
	Skipped int
}

// Submit loads the file at path and queues every page not already mapped.
func (s *Service) Submit(ctx context.Context, path string, force bool) (SubmitResult, error) {
	if s.queue == nil {
		return SubmitResult{}, common.NewAppError("INTERNAL", "no queue configured", common.ErrInternal)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return SubmitResult{}, common.NewAppError("INVALID_INPUT", "path is required", common.ErrInvalidInput)
	}

	hash, docs, err := s.loader.Load(ctx, path)
	out := SubmitResult{Path: path, Hash: hash}
	if err != nil {
		return out, err
	}
	reqID := common.RequestIDFromContext(ctx)
	for _, d := range docs {
		if !force {
			prior, err := s.priorMapped(ctx, hash, d.PageIndex)
			if err != nil {
				s.logger.Error("runs.duplicate.lookup_failed", "path", path, "page", d.PageIndex, "error", err)
				return out, err
			}
			if prior != nil {
				s.logger.Info("runs.submit.skipped", "path", path, "page", d.PageIndex, "run_id", prior.ID)
				out.Skipped++
				continue
			}
		}
		run := &repository.Run{
			DocumentID:  d.ID,
			Source:      d.Source,
			PageIndex:   d.PageIndex,
			ContentHash: hash,
			Status:      constants.RunStatusQueued,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			return out, err
		}
		if err := s.queue.Enqueue(ctx, async.Job{ID: run.ID, Document: d, ContentHash: hash, RequestID: reqID}); err != nil {
			run.Status = constants.RunStatusFailed
			run.Error = err.Error()
			_ = s.runs.Update(ctx, run)
			return out, err
		}
		out.RunIDs = append(out.RunIDs, run.ID)
	}
	s.logger.Info("runs.submitted", "path", path, "queued", len(out.RunIDs), "skipped", out.Skipped)
	return out, nil
}

// Record is the queue sink: it stores the outcome of a queued job on the run
// created by Submit.
func (s *Service) Record(ctx context.Context, job async.Job, res core.Result, err error) {
	// The job context may already be past its deadline.
	ctx = context.WithoutCancel(ctx)
	run, gerr := s.runs.Get(ctx, job.ID)
	if gerr != nil {
		run = &repository.Run{
			ID:          job.ID,
			DocumentID:  job.Document.ID,
			Source:      job.Document.Source,
			PageIndex:   job.Document.PageIndex,
			ContentHash: job.ContentHash,
			Status:      constants.RunStatusRunning,
		}
		if cerr := s.runs.Create(ctx, run); cerr != nil {
			s.logger.Error("runs.record.failed", "job_id", job.ID, "error", cerr)
			return
		}
	}
	if ferr := s.finish(ctx, run, res, err); ferr != nil {
		s.logger.Error("runs.record.failed", "run_id", run.ID, "error", ferr)
	}
}

// priorMapped returns the MAPPED run for this content and page, or nil when
// there is none. Lookup failures other than a miss are returned.
func (s *Service) priorMapped(ctx context.Context, hash string, page int) (*repository.Run, error) {
	prior, err := s.runs.FindMappedByContent(ctx, hash, page)
	switch {
	case err == nil:
		return prior, nil
	case errors.Is(err, common.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, id string) (*repository.Run, error) {
	return s.runs.Get(ctx, strings.TrimSpace(id))
}

// List returns stored runs, newest first.
func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]repository.Run, error) {
	return s.runs.List(ctx, f)
}

// finish copies the pipeline outcome onto run and stores it. A mapped
// payload whose idempotency key already belongs to another MAPPED run is
// recorded as a duplicate.
func (s *Service) finish(ctx context.Context, run *repository.Run, res core.Result, err error) error {
	if res.Diagnostics.DocumentID != "" {
		run.DocumentID = res.Diagnostics.DocumentID
	}
	run.Stage = res.Diagnostics.Stage
	run.ExtractionMethod = string(res.Diagnostics.ExtractionMethod)
	run.ErrorCount = len(res.Report.Errors())
	run.WarningCount = len(res.Report.Warnings())
	run.Report = marshal(res.Report)
	run.Diagnostics = marshal(res.Diagnostics)

	switch {
	case err == nil && res.Payload != nil:
		run.OrderID = res.Payload.OrderID
		run.IdempotencyKey = res.Payload.IdempotencyKey
		run.Payload = marshal(res.Payload)
		run.Status = constants.RunStatusMapped
		prior, perr := s.runs.FindMappedByIdempotencyKey(ctx, run.IdempotencyKey)
		switch {
		case perr == nil && prior.ID != run.ID:
			run.Status = constants.RunStatusDuplicate
			run.Error = fmt.Sprintf("order %s already mapped by run %s", prior.OrderID, prior.ID)
			s.logger.Warn("runs.duplicate.order", "run_id", run.ID, "prior_run_id", prior.ID, "order_id", run.OrderID)
		case perr != nil && !errors.Is(perr, common.ErrNotFound):
			s.logger.Error("runs.duplicate.lookup_failed", "run_id", run.ID, "error", perr)
		}
	case err == nil:
		run.Status = constants.RunStatusFailed
		run.Error = "pipeline returned no payload"
	case errors.Is(err, common.ErrValidation):
		run.Status = constants.RunStatusRejected
		run.ErrorKind = kindOf(err)
		run.Error = err.Error()
	default:
		run.Status = constants.RunStatusFailed
		run.ErrorKind = kindOf(err)
		run.Error = err.Error()
	}
	return s.runs.Update(ctx, run)
}

func kindOf(err error) string {
	var pe *common.PipelineError
	if errors.As(err, &pe) && pe.Kind != nil {
		return pe.Kind.Error()
	}
	return ""
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// resultFromRun rebuilds what a stored run can tell about its result.
func resultFromRun(run *repository.Run) core.Result {
	var res core.Result
	if run.Payload != "" {
		var p entity.OrderPayload
		if err := json.Unmarshal([]byte(run.Payload), &p); err == nil {
			p.IdempotencyKey = run.IdempotencyKey
			res.Payload = &p
		}
	}
	if run.Report != "" {
		_ = json.Unmarshal([]byte(run.Report), &res.Report)
	}
	if run.Diagnostics != "" {
		_ = json.Unmarshal([]byte(run.Diagnostics), &res.Diagnostics)
	}
	return res
}
