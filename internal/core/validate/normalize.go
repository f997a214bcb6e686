package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const dateLayout = "2006-01-02"

var (
	isoLayouts = []string{"2006-1-2", "2006/1/2", "2006.1.2"}

	dayFirstLayouts = []string{
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2/1/06", "2-1-06", "2.1.06",
	}
	monthFirstLayouts = []string{
		"1/2/2006", "1-2-2006", "1.2.2006",
		"1/2/06", "1-2-06", "1.2.06",
	}
	namedLayouts = []string{
		"2 Jan 2006", "2 January 2006", "2-Jan-2006", "2-January-2006",
		"2-Jan-06", "2 Jan 06", "Jan 2 2006", "January 2 2006",
	}

	ordinalRe = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	septRe    = regexp.MustCompile(`(?i)\bsept\b`)
)

// Normalize rewrites a record into canonical form. It is idempotent, and
// values it cannot canonicalize are kept (whitespace-collapsed) for the format
// checks to report.
func (v *Validator) Normalize(rec entity.InvoiceRecord) entity.InvoiceRecord {
	out := rec.Clone()

	out.InvoiceNumber = collapse(out.InvoiceNumber)
	out.InvoiceDate = v.normalizeDate(out.InvoiceDate)
	out.Currency = strings.ToUpper(collapse(out.Currency))

	out.PaymentMethod = collapse(out.PaymentMethod)
	if pm, ok := constants.CanonicalPaymentMethod(out.PaymentMethod); ok {
		out.PaymentMethod = pm
	}

	out.Billing = v.normalizeParty(out.Billing)
	if out.Shipping != nil {
		s := v.normalizeParty(*out.Shipping)
		out.Shipping = &s
	}

	for i := range out.Items {
		it := &out.Items[i]
		it.Name = collapse(it.Name)
		it.HSN = strings.ReplaceAll(collapse(it.HSN), " ", "")
		it.Quantity = round(it.Quantity, 3)
		it.UnitPrice = round(it.UnitPrice, 2)
		it.LineTotal = round(it.LineTotal, 2)
		it.TaxRate = round(it.TaxRate, 2)
		it.Weight = round(it.Weight, 3)
	}

	out.SubTotal = round(out.SubTotal, 2)
	out.Tax = round(out.Tax, 2)
	out.Total = round(out.Total, 2)
	return out
}

func (v *Validator) normalizeParty(p entity.Party) entity.Party {
	p.Name = collapse(p.Name)
	p.Address = collapse(p.Address)
	p.City = collapse(p.City)
	p.Country = collapse(p.Country)
	p.GSTIN = strings.ToUpper(strings.ReplaceAll(collapse(p.GSTIN), " ", ""))
	p.Email = strings.ToLower(collapse(p.Email))
	p.Phone = v.normalizePhone(collapse(p.Phone))

	p.PostalCode = strings.ToUpper(collapse(p.PostalCode))
	if v.cfg.Locale == "IN" {
		p.PostalCode = strings.ReplaceAll(p.PostalCode, " ", "")
	}

	p.State = collapse(p.State)
	if s, ok := constants.CanonicalState(p.State); ok {
		p.State = s
	} else if s, ok := constants.FindState(p.State); ok {
		p.State = s
	}
	// A well-formed GSTIN names the registered state in its first two digits.
	if p.State == "" && gstinPattern.MatchString(p.GSTIN) {
		p.State = constants.GSTStateCodes[p.GSTIN[:2]]
	}
	return p
}

// normalizePhone rewrites a number valid for the locale region to E.164.
func (v *Validator) normalizePhone(s string) string {
	if s == "" {
		return ""
	}
	num, err := phonenumbers.Parse(s, v.cfg.Locale)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// normalizeDate rewrites a parseable date to YYYY-MM-DD. Numeric dates are read
// day-first except in the US locale.
func (v *Validator) normalizeDate(s string) string {
	s = collapse(s)
	if s == "" {
		return ""
	}
	if t, ok := v.parseDate(s); ok {
		return t.Format(dateLayout)
	}
	return s
}

func (v *Validator) parseDate(s string) (time.Time, bool) {
	clean := ordinalRe.ReplaceAllString(s, "$1")
	clean = septRe.ReplaceAllString(clean, "Sep")
	clean = collapse(strings.ReplaceAll(clean, ",", " "))

	numeric := dayFirstLayouts
	if v.cfg.Locale == "US" {
		numeric = monthFirstLayouts
	}
	for _, group := range [][]string{isoLayouts, numeric, namedLayouts} {
		for _, layout := range group {
			t, err := time.Parse(layout, clean)
			if err == nil && t.Year() >= 1990 && t.Year() <= 2100 {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func round(d decimal.NullDecimal, places int32) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(places))
}
