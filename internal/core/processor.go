package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core/consolidate"
	"github.com/joseph-ayodele/invoice2order/internal/core/extract"
	"github.com/joseph-ayodele/invoice2order/internal/core/ocr"
	"github.com/joseph-ayodele/invoice2order/internal/core/order"
	"github.com/joseph-ayodele/invoice2order/internal/core/preprocess"
	"github.com/joseph-ayodele/invoice2order/internal/core/validate"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Stage names recorded in Diagnostics.Stage and PipelineError.Stage.
const (
	StagePreprocess  = "preprocess"
	StageRecognize   = "recognize"
	StageConsolidate = "consolidate"
	StageExtract     = "extract"
	StageValidate    = "validate"
	StageMap         = "map"
)

// Result is the best available output of one document run. Payload is nil
// unless the record validated without errors.
type Result struct {
	Text        entity.ConsolidatedText `json:"text"`
	Record      entity.InvoiceRecord    `json:"record"`
	Report      entity.ValidationReport `json:"report"`
	Payload     *entity.OrderPayload    `json:"payload"`
	Diagnostics entity.Diagnostics      `json:"diagnostics"`
}

// Processor runs a document through preprocessing, recognition,
// consolidation, extraction, validation and order mapping.
type Processor struct {
	logger       *slog.Logger
	preprocessor *preprocess.Preprocessor
	pool         *ocr.Pool
	textPool     *ocr.Pool
	consolidator *consolidate.Consolidator
	extractor    *extract.Extractor
	validator    *validate.Validator
	mapper       *order.Mapper
}

func NewProcessor(
	logger *slog.Logger,
	preprocessor *preprocess.Preprocessor,
	pool *ocr.Pool,
	consolidator *consolidate.Consolidator,
	extractor *extract.Extractor,
	validator *validate.Validator,
	mapper *order.Mapper,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:       logger,
		preprocessor: preprocessor,
		pool:         pool,
		textPool:     ocr.NewPool([]ocr.Engine{{Recognizer: ocr.TextLayer{}, Weight: 1}}, 1, logger),
		consolidator: consolidator,
		extractor:    extractor,
		validator:    validator,
		mapper:       mapper,
	}
}

// Process runs one document. The returned Result always carries whatever was
// produced before a failure; a non-nil error is a *common.PipelineError whose
// Kind is one of the pipeline sentinels.
func (p *Processor) Process(ctx context.Context, doc entity.Document) (Result, error) {
	start := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	ctx = common.WithDocumentID(ctx, doc.ID)
	reqID := common.RequestIDFromContext(ctx)

	res := Result{Diagnostics: entity.Diagnostics{DocumentID: doc.ID}}
	fail := func(kind error, stage string, cause error) (Result, error) {
		res.Diagnostics.Stage = stage
		res.Diagnostics.ElapsedMS = time.Since(start).Milliseconds()
		p.logger.Error("pipeline.process.failed",
			"req_id", reqID,
			"doc_id", doc.ID,
			"stage", stage,
			"kind", kind,
			"error", cause,
			"elapsed_ms", res.Diagnostics.ElapsedMS,
		)
		return res, common.NewPipelineError(kind, stage, res.Diagnostics, cause)
	}

	p.logger.Info("pipeline.process.start",
		"req_id", reqID,
		"doc_id", doc.ID,
		"source", doc.Source,
		"page", doc.PageIndex,
	)

	// Preprocess. Documents with only a text layer go straight to the text pool.
	pool := p.pool
	work := doc
	switch {
	case doc.Image != nil:
		img, diag, err := p.preprocessor.Normalize(doc.Image)
		if err != nil {
			return fail(common.ErrInvalidDocument, StagePreprocess, err)
		}
		res.Diagnostics.Preprocess = diag
		work.Image = img
	case strings.TrimSpace(doc.Text) != "":
		pool = p.textPool
	default:
		return fail(common.ErrInvalidDocument, StagePreprocess, errors.New("document has neither an image nor a text layer"))
	}

	// Recognize
	results, engines, err := pool.Recognize(ctx, work)
	res.Diagnostics.Engines = engines
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return fail(common.ErrAllEnginesFailed, StageRecognize, err)
	}

	// Consolidate
	text, err := p.consolidator.Consolidate(results)
	if err != nil {
		return fail(common.ErrAllEnginesFailed, StageConsolidate, err)
	}
	res.Text = text
	res.Diagnostics.ConsolidationConfidence = text.Confidence

	// Extract
	rec, outcome := p.extractor.Extract(ctx, text)
	res.Diagnostics.ExtractionMethod = outcome.Method
	if outcome.Err != nil {
		res.Diagnostics.ExtractionError = outcome.Err.Error()
	}
	if outcome.Failed() {
		return fail(common.ErrExtractionDegraded, StageExtract, outcome.Err)
	}

	// Validate
	rec, report := p.validator.Validate(rec)
	res.Record = rec
	res.Report = report
	res.Diagnostics.Errors = len(report.Errors())
	res.Diagnostics.Warnings = len(report.Warnings())

	// Map
	payload, err := p.mapper.Map(rec, report)
	if err != nil {
		// The mapper refuses records with error findings; the report explains why.
		return fail(common.ErrValidation, StageValidate, err)
	}
	res.Payload = &payload

	res.Diagnostics.Stage = StageMap
	res.Diagnostics.ElapsedMS = time.Since(start).Milliseconds()
	p.logger.Info("pipeline.process.done",
		"req_id", reqID,
		"doc_id", doc.ID,
		"method", outcome.Method,
		"engines_ok", len(res.Diagnostics.SucceededEngines()),
		"confidence", text.Confidence,
		"warnings", res.Diagnostics.Warnings,
		"order_id", payload.OrderID,
		"elapsed_ms", res.Diagnostics.ElapsedMS,
	)
	return res, nil
}
