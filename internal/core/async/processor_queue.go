package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/internal/async"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Processor is the part of core.Processor the queue needs.
type Processor interface {
	Process(ctx context.Context, doc entity.Document) (core.Result, error)
}

// Sink receives every finished job. It runs on the worker goroutine.
type Sink func(ctx context.Context, job async.Job, res core.Result, err error)

type ProcessorQueue struct {
	proc    Processor
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan async.Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ async.Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan async.Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithSink(s Sink) Option {
	return func(q *ProcessorQueue) {
		q.sink = s
	}
}

// FromConfig turns the queue settings into options.
func FromConfig(cfg common.QueueConfig) []Option {
	return []Option{WithWorkers(cfg.Workers), WithQueueSize(cfg.Size), WithProcessTimeout(cfg.ProcessTimeout)}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan async.Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job async.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}

	res, err := q.proc.Process(ctx, job.Document)
	waited := time.Since(job.SubmittedAt).Milliseconds()
	if err != nil {
		q.logger.Error("queue.job.failed",
			"worker_id", workerID,
			"job_id", job.ID,
			"req_id", job.RequestID,
			"doc_id", res.Diagnostics.DocumentID,
			"error", err,
			"elapsed_ms", waited,
		)
	} else {
		q.logger.Info("queue.job.done",
			"worker_id", workerID,
			"job_id", job.ID,
			"req_id", job.RequestID,
			"doc_id", res.Diagnostics.DocumentID,
			"elapsed_ms", waited,
		)
	}
	if q.sink != nil {
		q.sink(ctx, job, res, err)
	}
}

// Enqueue hands job to the workers, blocking while the buffer is full until
// ctx is done. Jobs without an ID or submit time get one.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job async.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "job_id", job.ID, "reason", "shutting down")
		return async.ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "job_id", job.ID, "source", job.Document.Source, "page", job.Document.PageIndex)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "job_id", job.ID, "capacity", cap(q.ch))
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or for
// ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted", "error", ctx.Err())
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
