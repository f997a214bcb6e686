package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/llm"
)

// Outcome reports which path produced a record.
type Outcome struct {
	Method constants.ExtractionMethod
	// Err is the model-path failure wrapped in common.ErrExtractionDegraded.
	// It is set when the fallback recovered and when nothing could be produced.
	Err error
	// Raw is the model's answer after fence stripping, when there was one.
	Raw []byte
}

// Failed reports that no extraction path produced a record.
func (o Outcome) Failed() bool { return o.Method == constants.MethodNone }

// Extractor turns consolidated text into an InvoiceRecord: one model attempt,
// then the rule-based fallback.
type Extractor struct {
	model llm.Completer
	cfg   common.LLMConfig
	log   *slog.Logger
}

// New builds an Extractor. A nil model sends every document to the fallback.
func New(model llm.Completer, cfg common.LLMConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FallbackConfidence <= 0 || cfg.FallbackConfidence > 1 {
		cfg.FallbackConfidence = 0.5
	}
	return &Extractor{model: model, cfg: cfg, log: logger}
}

// Extract never returns a transport or parse error directly: model failures are
// reported through Outcome.Err and recovered by the fallback when it is enabled.
func (e *Extractor) Extract(ctx context.Context, text entity.ConsolidatedText) (entity.InvoiceRecord, Outcome) {
	start := time.Now()
	docID := common.DocumentIDFromContext(ctx)
	base := text.Confidence
	if base <= 0 || base > 1 {
		base = 1
	}

	rec, raw, err := e.fromModel(ctx, text)
	if err == nil {
		markConfidence(&rec, base)
		e.log.Info("extract.llm.ok",
			"doc_id", docID,
			"items", len(rec.Items),
			"fields", len(rec.Populated()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return rec, Outcome{Method: constants.MethodLLM, Raw: raw}
	}

	degraded := fmt.Errorf("%w: %w", common.ErrExtractionDegraded, err)
	if !e.cfg.FallbackEnabled {
		e.log.Error("extract.llm.failed",
			"doc_id", docID, "error", err, "fallback", false,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.InvoiceRecord{Method: constants.MethodNone}, Outcome{Method: constants.MethodNone, Err: degraded, Raw: raw}
	}

	e.log.Warn("extract.degraded", "doc_id", docID, "error", err)
	rec = Fallback(textLines(text))
	markConfidence(&rec, base*e.cfg.FallbackConfidence)
	e.log.Info("extract.fallback.ok",
		"doc_id", docID,
		"items", len(rec.Items),
		"fields", len(rec.Populated()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, Outcome{Method: constants.MethodFallback, Err: degraded, Raw: raw}
}

func (e *Extractor) fromModel(ctx context.Context, text entity.ConsolidatedText) (entity.InvoiceRecord, []byte, error) {
	if e.model == nil {
		return entity.InvoiceRecord{}, nil, errors.New("no language model configured")
	}
	if strings.TrimSpace(text.Text) == "" {
		return entity.InvoiceRecord{}, nil, errors.New("no text to extract from")
	}

	mctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	content, err := e.model.Complete(mctx, llm.Request{
		System:      llm.SystemPrompt,
		Prompt:      llm.BuildUserPrompt(text.Text, e.cfg.MaxPromptChars),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		return entity.InvoiceRecord{}, nil, fmt.Errorf("model %s: %w", e.model.Name(), err)
	}

	fields, raw, err := llm.DecodeInvoice(content)
	if err != nil {
		return entity.InvoiceRecord{}, raw, err
	}
	rec := recordFromFields(fields)
	if len(rec.Populated()) == 0 {
		return entity.InvoiceRecord{}, raw, errors.New("model returned no fields")
	}
	return rec, raw, nil
}

func recordFromFields(f llm.InvoiceFields) entity.InvoiceRecord {
	rec := entity.InvoiceRecord{
		InvoiceNumber: str(f.InvoiceNumber),
		InvoiceDate:   str(f.OrderDate),
		PaymentMethod: str(f.PaymentMethod),
		Currency:      strings.ToUpper(str(f.Currency)),
		Billing: entity.Party{
			Name:       str(f.BillingName),
			Address:    str(f.BillingAddress),
			City:       str(f.BillingCity),
			State:      str(f.BillingState),
			PostalCode: str(f.BillingPincode),
			Phone:      str(f.BillingPhone),
			Email:      str(f.BillingEmail),
			GSTIN:      str(f.BillingGSTIN),
		},
		SubTotal: f.SubTotal,
		Tax:      f.TaxAmount,
		Total:    f.TotalAmount,
		Method:   constants.MethodLLM,
	}

	ship := entity.Party{
		Name:       str(f.ShippingName),
		Address:    str(f.ShippingAddress),
		City:       str(f.ShippingCity),
		State:      str(f.ShippingState),
		PostalCode: str(f.ShippingPincode),
		Phone:      str(f.ShippingPhone),
		Email:      str(f.ShippingEmail),
	}
	if !ship.IsZero() {
		rec.Shipping = &ship
	}

	for _, it := range f.Items {
		item := entity.LineItem{
			Name:      str(it.Name),
			Quantity:  it.Units,
			UnitPrice: it.SellingPrice,
			LineTotal: it.LineTotal,
			TaxRate:   it.TaxRate,
			HSN:       str(it.HSN),
			Weight:    it.Weight,
		}
		if item.Name == "" && !item.Quantity.Valid && !item.UnitPrice.Valid && !item.LineTotal.Valid {
			continue
		}
		rec.Items = append(rec.Items, item)
	}
	return rec
}

// markConfidence assigns c to every populated field.
func markConfidence(rec *entity.InvoiceRecord, c float64) {
	for _, f := range rec.Populated() {
		rec.SetConfidence(f, c)
	}
}

func textLines(text entity.ConsolidatedText) []string {
	if len(text.Lines) > 0 {
		out := make([]string, 0, len(text.Lines))
		for _, l := range text.Lines {
			out = append(out, l.Text)
		}
		return out
	}
	return strings.Split(text.Text, "\n")
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func nullDecimal(s string) decimal.NullDecimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
