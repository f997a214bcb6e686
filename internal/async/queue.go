package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// ErrQueueClosed is returned by Enqueue once shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document page waiting to run through the pipeline.
type Job struct {
	ID          string
	Document    entity.Document
	ContentHash string
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
