package entity

import (
	"maps"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
)

// Field paths used as keys for confidences and findings.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldPaymentMethod = "payment_method"
	FieldCurrency      = "currency"
	FieldItems         = "items"
	FieldSubTotal      = "sub_total"
	FieldTax           = "tax"
	FieldTotal         = "total"

	PrefixBilling  = "billing"
	PrefixShipping = "shipping"
)

// Party is a billing or shipping identity block.
type Party struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	GSTIN      string `json:"gstin"`
}

// IsZero reports whether every field of the party is empty.
func (p Party) IsZero() bool { return p == Party{} }

// Populated returns the field paths (prefix + "." + json name) that hold a value.
func (p Party) Populated(prefix string) []string {
	var out []string
	add := func(name, v string) {
		if v != "" {
			out = append(out, prefix+"."+name)
		}
	}
	add("name", p.Name)
	add("address", p.Address)
	add("city", p.City)
	add("state", p.State)
	add("postal_code", p.PostalCode)
	add("country", p.Country)
	add("phone", p.Phone)
	add("email", p.Email)
	add("gstin", p.GSTIN)
	return out
}

// LineItem is one row of the invoice item table.
type LineItem struct {
	Name      string              `json:"name"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	LineTotal decimal.NullDecimal `json:"line_total"`
	TaxRate   decimal.NullDecimal `json:"tax_rate"`
	HSN       string              `json:"hsn"`
	Weight    decimal.NullDecimal `json:"weight"`
}

// InvoiceRecord is the structured form of an invoice.
// Confidence holds per-field confidence keyed by field path (e.g. "billing.gstin");
// fields not listed are treated as fully confident.
type InvoiceRecord struct {
	InvoiceNumber string                     `json:"invoice_number"`
	InvoiceDate   string                     `json:"invoice_date"`
	PaymentMethod string                     `json:"payment_method"`
	Currency      string                     `json:"currency"`
	Billing       Party                      `json:"billing"`
	Shipping      *Party                     `json:"shipping"`
	Items         []LineItem                 `json:"items"`
	SubTotal      decimal.NullDecimal        `json:"sub_total"`
	Tax           decimal.NullDecimal        `json:"tax"`
	Total         decimal.NullDecimal        `json:"total"`
	Method        constants.ExtractionMethod `json:"extraction_method"`
	Confidence    map[string]float64         `json:"confidence,omitempty"`
}

// Clone returns a deep copy.
func (r InvoiceRecord) Clone() InvoiceRecord {
	out := r
	if r.Shipping != nil {
		s := *r.Shipping
		out.Shipping = &s
	}
	if r.Items != nil {
		out.Items = append([]LineItem(nil), r.Items...)
	}
	if r.Confidence != nil {
		out.Confidence = maps.Clone(r.Confidence)
	}
	return out
}

// FieldConfidence returns the recorded confidence for a field, or 1 when unrecorded.
func (r InvoiceRecord) FieldConfidence(field string) float64 {
	if c, ok := r.Confidence[field]; ok {
		return c
	}
	return 1
}

// Populated returns the field paths that hold a value.
func (r InvoiceRecord) Populated() []string {
	var out []string
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}
	add(FieldInvoiceNumber, r.InvoiceNumber != "")
	add(FieldInvoiceDate, r.InvoiceDate != "")
	add(FieldPaymentMethod, r.PaymentMethod != "")
	add(FieldCurrency, r.Currency != "")
	out = append(out, r.Billing.Populated(PrefixBilling)...)
	if r.Shipping != nil {
		out = append(out, r.Shipping.Populated(PrefixShipping)...)
	}
	add(FieldItems, len(r.Items) > 0)
	add(FieldSubTotal, r.SubTotal.Valid)
	add(FieldTax, r.Tax.Valid)
	add(FieldTotal, r.Total.Valid)
	return out
}

// SetConfidence records a per-field confidence.
func (r *InvoiceRecord) SetConfidence(field string, c float64) {
	if r.Confidence == nil {
		r.Confidence = map[string]float64{}
	}
	r.Confidence[field] = c
}
