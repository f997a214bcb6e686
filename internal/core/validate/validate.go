package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const maxInvoiceNumberLen = 50

// requiredFields are checked for presence and for low confidence.
var requiredFields = []string{
	entity.PrefixBilling + ".name",
	entity.PrefixBilling + ".address",
	entity.PrefixBilling + ".postal_code",
	entity.FieldItems,
	entity.FieldSubTotal,
}

// Validator checks and normalizes InvoiceRecords for one locale.
type Validator struct {
	cfg   common.ValidationConfig
	email *validator.Validate
	log   *slog.Logger
}

func New(cfg common.ValidationConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Locale = strings.ToUpper(strings.TrimSpace(cfg.Locale))
	if cfg.Locale == "" {
		cfg.Locale = "IN"
	}
	return &Validator{
		cfg:   cfg,
		email: validator.New(validator.WithRequiredStructEnabled()),
		log:   logger,
	}
}

// Validate normalizes rec and reports presence, format, consistency and
// confidence findings against the normalized record. The input is not modified.
func (v *Validator) Validate(rec entity.InvoiceRecord) (entity.InvoiceRecord, entity.ValidationReport) {
	out := v.Normalize(rec)

	c := &checker{}
	v.checkPresence(c, out)
	v.checkFormat(c, out)
	v.checkConsistency(c, out)
	v.checkConfidence(c, out)

	report := c.report()
	v.log.Debug("validate.done",
		"errors", len(report.Errors()),
		"warnings", len(report.Warnings()),
		"method", out.Method,
	)
	return out, report
}

func (v *Validator) checkPresence(c *checker, rec entity.InvoiceRecord) {
	b := rec.Billing
	c.Field(entity.PrefixBilling+".name", b.Name, constants.SeverityError, Required)
	c.Field(entity.PrefixBilling+".address", b.Address, constants.SeverityError, Required)
	c.Field(entity.PrefixBilling+".postal_code", b.PostalCode, constants.SeverityError, Required)

	if len(rec.Items) == 0 {
		c.add(entity.FieldItems, constants.SeverityError, "at least one line item is required")
	}
	for i, it := range rec.Items {
		field := fmt.Sprintf("%s[%d]", entity.FieldItems, i)
		c.Field(field+".name", it.Name, constants.SeverityError, Required)
		switch {
		case !it.Quantity.Valid:
			c.add(field+".quantity", constants.SeverityError, "is required")
		case !it.Quantity.Decimal.IsPositive():
			c.add(field+".quantity", constants.SeverityError, "must be positive, got %s", it.Quantity.Decimal)
		}
		switch {
		case !it.UnitPrice.Valid:
			c.add(field+".unit_price", constants.SeverityError, "is required")
		case it.UnitPrice.Decimal.IsNegative():
			c.add(field+".unit_price", constants.SeverityError, "must not be negative, got %s", it.UnitPrice.Decimal.StringFixed(2))
		}
	}

	switch {
	case !rec.SubTotal.Valid:
		c.add(entity.FieldSubTotal, constants.SeverityError, "is required")
	case !rec.SubTotal.Decimal.IsPositive():
		c.add(entity.FieldSubTotal, constants.SeverityError, "must be positive, got %s", rec.SubTotal.Decimal.StringFixed(2))
	}
}

func (v *Validator) checkFormat(c *checker, rec entity.InvoiceRecord) {
	c.Field(entity.FieldInvoiceNumber, rec.InvoiceNumber, constants.SeverityWarning, MaxLength(maxInvoiceNumberLen))
	c.Field(entity.FieldInvoiceDate, rec.InvoiceDate, constants.SeverityWarning, CanonicalDate)
	c.Field(entity.FieldCurrency, rec.Currency, constants.SeverityWarning, CurrencyCode)
	c.Field(entity.FieldPaymentMethod, rec.PaymentMethod, constants.SeverityWarning, PaymentMethod)

	v.checkParty(c, entity.PrefixBilling, rec.Billing)
	// An absent shipping block is defaulted from billing by the order mapper.
	if rec.Shipping != nil {
		v.checkParty(c, entity.PrefixShipping, *rec.Shipping)
	}
}

func (v *Validator) checkParty(c *checker, prefix string, p entity.Party) {
	c.Field(prefix+".gstin", p.GSTIN, constants.SeverityError, GSTIN)
	c.Field(prefix+".postal_code", p.PostalCode, constants.SeverityError, PostalCode(v.email, v.cfg.Locale))
	c.Field(prefix+".phone", p.Phone, constants.SeverityWarning, Phone(v.cfg.Locale))
	c.Field(prefix+".email", p.Email, constants.SeverityWarning, Email(v.email))
	c.Field(prefix+".state", p.State, constants.SeverityWarning, State(v.cfg.Locale))
}

func (v *Validator) checkConsistency(c *checker, rec entity.InvoiceRecord) {
	tol := v.cfg.Tolerance

	for i, it := range rec.Items {
		if !it.Quantity.Valid || !it.UnitPrice.Valid || !it.LineTotal.Valid {
			continue
		}
		if lineMatches(it, tol) {
			continue
		}
		c.add(fmt.Sprintf("%s[%d].line_total", entity.FieldItems, i), constants.SeverityWarning,
			"quantity %s x unit price %s does not match line total %s",
			it.Quantity.Decimal, it.UnitPrice.Decimal.StringFixed(2), it.LineTotal.Decimal.StringFixed(2))
	}

	if !rec.SubTotal.Valid || !rec.Total.Valid {
		return
	}
	sub, total := rec.SubTotal.Decimal, rec.Total.Decimal
	if !rec.Tax.Valid {
		if sub.Sub(total).Abs().GreaterThan(tol) {
			c.add(entity.FieldTotal, constants.SeverityWarning,
				"total %s differs from sub_total %s and no tax amount was found",
				total.StringFixed(2), sub.StringFixed(2))
		}
		return
	}
	tax := rec.Tax.Decimal
	expected := sub.Add(tax)
	if expected.Sub(total).Abs().GreaterThan(tol) {
		c.add(entity.FieldTotal, constants.SeverityError,
			"sub_total %s + tax %s = %s does not match total %s",
			sub.StringFixed(2), tax.StringFixed(2), expected.StringFixed(2), total.StringFixed(2))
	}
}

// lineMatches accepts a line total that is either net or tax-inclusive.
func lineMatches(it entity.LineItem, tol decimal.Decimal) bool {
	net := it.Quantity.Decimal.Mul(it.UnitPrice.Decimal)
	if net.Sub(it.LineTotal.Decimal).Abs().LessThanOrEqual(tol) {
		return true
	}
	if !it.TaxRate.Valid {
		return false
	}
	hundred := decimal.NewFromInt(100)
	gross := net.Mul(hundred.Add(it.TaxRate.Decimal)).Div(hundred)
	return gross.Sub(it.LineTotal.Decimal).Abs().LessThanOrEqual(tol)
}

func (v *Validator) checkConfidence(c *checker, rec entity.InvoiceRecord) {
	if v.cfg.LowConfidenceThreshold <= 0 {
		return
	}
	populated := map[string]bool{}
	for _, f := range rec.Populated() {
		populated[f] = true
	}
	for _, f := range requiredFields {
		if !populated[f] {
			continue
		}
		if conf := rec.FieldConfidence(f); conf < v.cfg.LowConfidenceThreshold {
			c.add(f, constants.SeverityWarning, "low confidence %.2f (extracted by %s)", conf, rec.Method)
		}
	}
}
