package runs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/async"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	coreasync "github.com/joseph-ayodele/invoice2order/internal/core/async"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
)

// stubProcessor maps every document whose text contains "INVOICE" to an
// order keyed by the text, and rejects the rest.
type stubProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProcessor) Process(_ context.Context, doc entity.Document) (core.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	res := core.Result{Diagnostics: entity.Diagnostics{DocumentID: doc.ID, ExtractionMethod: constants.MethodFallback}}
	if len(doc.Text) < 7 || doc.Text[:7] != "INVOICE" {
		res.Diagnostics.Stage = core.StageValidate
		res.Report = entity.ValidationReport{Findings: []entity.Finding{{Field: "billing.name", Severity: constants.SeverityError, Message: "required"}}}
		return res, common.NewPipelineError(common.ErrValidation, core.StageValidate, res.Diagnostics, common.ErrMappingSkipped)
	}
	res.Diagnostics.Stage = core.StageMap
	res.Payload = &entity.OrderPayload{OrderID: "INV-" + doc.Text[8:], IdempotencyKey: "key-" + doc.Text[8:]}
	return res, nil
}

func newService(t *testing.T, proc Processor) (*Service, repository.RunRepository) {
	t.Helper()
	db, err := repository.Open(context.Background(), common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))

	repo := repository.NewRunRepository(db, nil)
	loader := ingest.NewLoader(common.OCRConfig{}, common.IngestConfig{MinTextChars: 1}, nil, nil)
	return NewService(proc, repo, loader, nil, nil), repo
}

func TestProcessBytesRecordsRuns(t *testing.T) {
	proc := &stubProcessor{}
	svc, repo := newService(t, proc)
	ctx := context.Background()

	pages, err := svc.ProcessBytes(ctx, "a.txt", []byte("INVOICE 101"), false)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.NoError(t, pages[0].Err)
	assert.False(t, pages[0].Duplicate)
	assert.Equal(t, constants.RunStatusMapped, pages[0].Run.Status)

	stored, err := repo.Get(ctx, pages[0].Run.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-101", stored.OrderID)
	assert.Equal(t, "key-101", stored.IdempotencyKey)
	assert.Equal(t, string(constants.MethodFallback), stored.ExtractionMethod)
	assert.Contains(t, stored.Payload, `"order_id":"INV-101"`)

	// Same bytes again: served from the ledger.
	again, err := svc.ProcessBytes(ctx, "a-copy.txt", []byte("INVOICE 101"), false)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, again[0].Duplicate)
	assert.Equal(t, pages[0].Run.ID, again[0].Run.ID)
	require.NotNil(t, again[0].Result.Payload)
	assert.Equal(t, "INV-101", again[0].Result.Payload.OrderID)
	assert.Equal(t, "key-101", again[0].Result.Payload.IdempotencyKey)
	assert.Equal(t, 1, proc.calls)

	// Forced: processed again, but the order is already mapped.
	forced, err := svc.ProcessBytes(ctx, "a.txt", []byte("INVOICE 101"), true)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusDuplicate, forced[0].Run.Status)
	assert.True(t, forced[0].Duplicate)
	assert.Equal(t, 2, proc.calls)
}

func TestProcessBytesRejected(t *testing.T) {
	svc, repo := newService(t, &stubProcessor{})
	ctx := context.Background()

	pages, err := svc.ProcessBytes(ctx, "b.txt", []byte("scan without header"), false)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.True(t, errors.Is(pages[0].Err, common.ErrValidation))

	stored, err := repo.Get(ctx, pages[0].Run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusRejected, stored.Status)
	assert.Equal(t, common.ErrValidation.Error(), stored.ErrorKind)
	assert.Equal(t, 1, stored.ErrorCount)
	assert.Contains(t, stored.Report, "billing.name")
}

func TestProcessBytesInvalidFile(t *testing.T) {
	svc, _ := newService(t, &stubProcessor{})
	_, err := svc.ProcessBytes(context.Background(), "x.bin", []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00}, false)
	assert.True(t, errors.Is(err, common.ErrInvalidDocument))
}

func TestSubmitThroughQueue(t *testing.T) {
	proc := &stubProcessor{}
	svc, repo := newService(t, proc)
	q := coreasync.NewProcessorQueue(proc, nil, coreasync.WithWorkers(1), coreasync.WithSink(svc.Record))
	svc.SetQueue(q)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, os.WriteFile(path, []byte("INVOICE 202"), 0o600))

	res, err := svc.Submit(ctx, path, false)
	require.NoError(t, err)
	require.Len(t, res.RunIDs, 1)
	assert.Len(t, res.Hash, 64)

	q.Shutdown(ctx)

	stored, err := repo.Get(ctx, res.RunIDs[0])
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusMapped, stored.Status)
	assert.Equal(t, "INV-202", stored.OrderID)

	// A second submit of the same file is skipped.
	q2 := coreasync.NewProcessorQueue(proc, nil, coreasync.WithSink(svc.Record))
	svc.SetQueue(q2)
	defer q2.Shutdown(ctx)
	res, err = svc.Submit(ctx, path, false)
	require.NoError(t, err)
	assert.Empty(t, res.RunIDs)
	assert.Equal(t, 1, res.Skipped)
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newService(t, &stubProcessor{})
	_, err := svc.Submit(context.Background(), "a.txt", false)
	assert.True(t, errors.Is(err, common.ErrInternal), "no queue")

	q := coreasync.NewProcessorQueue(&stubProcessor{}, nil)
	defer q.Shutdown(context.Background())
	svc.SetQueue(q)
	_, err = svc.Submit(context.Background(), "  ", false)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestRecordWithoutQueuedRun(t *testing.T) {
	proc := &stubProcessor{}
	svc, repo := newService(t, proc)
	ctx := context.Background()

	doc := entity.Document{ID: "d-1", Text: "INVOICE 303"}
	res, err := proc.Process(ctx, doc)
	require.NoError(t, err)
	svc.Record(ctx, async.Job{ID: "job-1", Document: doc}, res, nil)

	stored, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusMapped, stored.Status)
}

// brokenLookup fails every content lookup with a database error.
type brokenLookup struct {
	repository.RunRepository
}

func (brokenLookup) FindMappedByContent(context.Context, string, int) (*repository.Run, error) {
	return nil, common.NewAppError("DB_ERROR", "get run", errors.Join(common.ErrDatabase, errors.New("connection reset")))
}

func TestDuplicateLookupFailure(t *testing.T) {
	proc := &stubProcessor{}
	svc, repo := newService(t, proc)
	svc.runs = brokenLookup{RunRepository: repo}
	ctx := context.Background()

	pages, err := svc.ProcessBytes(ctx, "a.txt", []byte("INVOICE 404"), false)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.ErrorIs(t, pages[0].Err, common.ErrDatabase)
	assert.Nil(t, pages[0].Run)
	assert.Equal(t, 0, proc.calls, "page is not processed when the ledger cannot be read")

	// force skips the lookup altogether.
	pages, err = svc.ProcessBytes(ctx, "a.txt", []byte("INVOICE 404"), true)
	require.NoError(t, err)
	require.NoError(t, pages[0].Err)
	assert.Equal(t, constants.RunStatusMapped, pages[0].Run.Status)

	q := coreasync.NewProcessorQueue(proc, nil, coreasync.WithSink(svc.Record))
	defer q.Shutdown(ctx)
	svc.SetQueue(q)
	path := filepath.Join(t.TempDir(), "d.txt")
	require.NoError(t, os.WriteFile(path, []byte("INVOICE 405"), 0o600))

	res, err := svc.Submit(ctx, path, false)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.Empty(t, res.RunIDs)
}
