package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
)

// Run is one row of the ledger: a single document page and the outcome of
// its pipeline run. Payload, Report and Diagnostics hold JSON.
type Run struct {
	ID               string
	DocumentID       string
	Source           string
	PageIndex        int
	ContentHash      string
	Status           constants.RunStatus
	Stage            string
	ErrorKind        string
	Error            string
	ExtractionMethod string
	OrderID          string
	IdempotencyKey   string
	ErrorCount       int
	WarningCount     int
	Payload          string
	Report           string
	Diagnostics      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListFilter narrows List. Zero values match everything; Limit 0 means 100.
type ListFilter struct {
	Status constants.RunStatus
	Since  time.Time
	Limit  int
}

type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// FindMappedByIdempotencyKey returns the most recent MAPPED run with key.
	FindMappedByIdempotencyKey(ctx context.Context, key string) (*Run, error)
	// FindMappedByContent returns the most recent MAPPED run of the same page.
	FindMappedByContent(ctx context.Context, hash string, page int) (*Run, error)
	List(ctx context.Context, f ListFilter) ([]Run, error)
}

const runsTable = "runs"

var runColumns = []string{
	"id", "document_id", "source", "page_index", "content_hash", "status", "stage",
	"error_kind", "error_message", "extraction_method", "order_id", "idempotency_key",
	"error_count", "warning_count", "payload", "report", "diagnostics",
	"created_at", "updated_at",
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *runRepo) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = constants.RunStatusQueued
	}
	now := r.now()
	run.CreatedAt, run.UpdatedAt = now, now

	query, args := r.builder().Insert(runsTable).
		Columns(runColumns...).
		Values(
			run.ID, run.DocumentID, run.Source, run.PageIndex, run.ContentHash, string(run.Status), run.Stage,
			run.ErrorKind, run.Error, run.ExtractionMethod, run.OrderID, run.IdempotencyKey,
			run.ErrorCount, run.WarningCount, run.Payload, run.Report, run.Diagnostics,
			run.CreatedAt, run.UpdatedAt,
		).Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("repository.run.create.failed", "run_id", run.ID, "doc_id", run.DocumentID, "error", err)
		return common.NewAppError("DB_ERROR", "create run", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Debug("repository.run.created", "run_id", run.ID, "doc_id", run.DocumentID, "status", run.Status)
	return nil
}

func (r *runRepo) Update(ctx context.Context, run *Run) error {
	run.UpdatedAt = r.now()
	query, args := r.builder().Update(runsTable).
		Set("status", string(run.Status)).
		Set("stage", run.Stage).
		Set("error_kind", run.ErrorKind).
		Set("error_message", run.Error).
		Set("extraction_method", run.ExtractionMethod).
		Set("order_id", run.OrderID).
		Set("idempotency_key", run.IdempotencyKey).
		Set("error_count", run.ErrorCount).
		Set("warning_count", run.WarningCount).
		Set("payload", run.Payload).
		Set("report", run.Report).
		Set("diagnostics", run.Diagnostics).
		Set("updated_at", run.UpdatedAt).
		Where(entsql.EQ("id", run.ID)).
		Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.run.update.failed", "run_id", run.ID, "error", err)
		return common.NewAppError("DB_ERROR", "update run", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", "run "+run.ID, common.ErrNotFound)
	}
	r.logger.Debug("repository.run.updated", "run_id", run.ID, "status", run.Status)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id string) (*Run, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *runRepo) FindMappedByIdempotencyKey(ctx context.Context, key string) (*Run, error) {
	if key == "" {
		return nil, common.NewAppError("NOT_FOUND", "empty idempotency key", common.ErrNotFound)
	}
	return r.one(ctx, entsql.And(
		entsql.EQ("idempotency_key", key),
		entsql.EQ("status", string(constants.RunStatusMapped)),
	))
}

func (r *runRepo) FindMappedByContent(ctx context.Context, hash string, page int) (*Run, error) {
	if hash == "" {
		return nil, common.NewAppError("NOT_FOUND", "empty content hash", common.ErrNotFound)
	}
	return r.one(ctx, entsql.And(
		entsql.EQ("content_hash", hash),
		entsql.EQ("page_index", page),
		entsql.EQ("status", string(constants.RunStatusMapped)),
	))
}

func (r *runRepo) List(ctx context.Context, f ListFilter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	b := r.builder()
	sel := b.Select(runColumns...).From(b.Table(runsTable))
	if f.Status != "" {
		sel.Where(entsql.EQ("status", string(f.Status)))
	}
	if !f.Since.IsZero() {
		sel.Where(entsql.GTE("created_at", f.Since.UTC()))
	}
	query, args := sel.OrderBy(entsql.Desc("created_at"), "id").Limit(limit).Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.run.list.failed", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list runs", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan run", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list runs", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func (r *runRepo) one(ctx context.Context, where *entsql.Predicate) (*Run, error) {
	b := r.builder()
	query, args := b.Select(runColumns...).
		From(b.Table(runsTable)).
		Where(where).
		OrderBy(entsql.Desc("created_at")).
		Limit(1).
		Query()
	run, err := scanRun(r.db.SQL().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "run", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("repository.run.get.failed", "error", err)
		return nil, common.NewAppError("DB_ERROR", "get run", errors.Join(common.ErrDatabase, err))
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var status string
	err := s.Scan(
		&run.ID, &run.DocumentID, &run.Source, &run.PageIndex, &run.ContentHash, &status, &run.Stage,
		&run.ErrorKind, &run.Error, &run.ExtractionMethod, &run.OrderID, &run.IdempotencyKey,
		&run.ErrorCount, &run.WarningCount, &run.Payload, &run.Report, &run.Diagnostics,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = constants.RunStatus(status)
	return &run, nil
}
