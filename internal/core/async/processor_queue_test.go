package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/internal/async"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

type fakeProcessor struct {
	delay time.Duration
	fail  map[string]bool

	mu      sync.Mutex
	reqIDs  []string
	hadDead bool
}

func (f *fakeProcessor) Process(ctx context.Context, doc entity.Document) (core.Result, error) {
	f.mu.Lock()
	f.reqIDs = append(f.reqIDs, common.RequestIDFromContext(ctx))
	_, f.hadDead = ctx.Deadline()
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return core.Result{}, ctx.Err()
		}
	}
	res := core.Result{Diagnostics: entity.Diagnostics{DocumentID: doc.ID}}
	if f.fail[doc.ID] {
		return res, common.NewPipelineError(common.ErrAllEnginesFailed, core.StageRecognize, res.Diagnostics, errors.New("boom"))
	}
	return res, nil
}

type collector struct {
	mu   sync.Mutex
	jobs map[string]error
}

func (c *collector) sink(_ context.Context, job async.Job, _ core.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jobs == nil {
		c.jobs = map[string]error{}
	}
	c.jobs[job.Document.ID] = err
}

func TestQueueProcessesAndDrains(t *testing.T) {
	proc := &fakeProcessor{delay: 5 * time.Millisecond, fail: map[string]bool{"d3": true}}
	var c collector
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(2), WithSink(c.sink))

	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		require.NoError(t, q.Enqueue(context.Background(), async.Job{Document: entity.Document{ID: id}, RequestID: "req-" + id}))
	}
	q.Shutdown(context.Background())

	require.Len(t, c.jobs, 5)
	assert.NoError(t, c.jobs["d1"])
	assert.True(t, errors.Is(c.jobs["d3"], common.ErrAllEnginesFailed))
	assert.Contains(t, proc.reqIDs, "req-d4")
	assert.True(t, proc.hadDead, "jobs run under a deadline")
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), async.Job{Document: entity.Document{ID: "late"}})
	assert.True(t, errors.Is(err, async.ErrQueueClosed))
}

func TestQueueProcessTimeout(t *testing.T) {
	var c collector
	q := NewProcessorQueue(&fakeProcessor{delay: time.Minute}, nil,
		WithWorkers(1), WithProcessTimeout(20*time.Millisecond), WithSink(c.sink))

	require.NoError(t, q.Enqueue(context.Background(), async.Job{Document: entity.Document{ID: "slow"}}))
	q.Shutdown(context.Background())

	require.Contains(t, c.jobs, "slow")
	assert.True(t, errors.Is(c.jobs["slow"], context.DeadlineExceeded))
}

func TestQueueEnqueueHonoursContextWhenFull(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{delay: time.Minute}, nil,
		WithWorkers(1), WithQueueSize(1), WithProcessTimeout(200*time.Millisecond))
	defer q.Shutdown(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), async.Job{Document: entity.Document{ID: "running"}}))
	// Give the worker time to take the first job so the buffer holds the second.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), async.Job{Document: entity.Document{ID: "buffered"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, async.Job{Document: entity.Document{ID: "blocked"}})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFromConfig(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil, FromConfig(common.QueueConfig{Workers: 3, Size: 7, ProcessTimeout: time.Second})...)
	defer q.Shutdown(context.Background())
	assert.Equal(t, 3, q.workers)
	assert.Equal(t, 7, cap(q.ch))
	assert.Equal(t, time.Second, q.timeout)
}
