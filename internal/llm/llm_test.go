package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAnswer = `{
  "billing_customer_name": "Acme Traders",
  "billing_address": "12 MG Road",
  "billing_city": "Pune",
  "billing_state": "Maharashtra",
  "billing_pincode": "411001",
  "billing_phone": "+91 98765 43210",
  "billing_email": null,
  "billing_gstin": "27AAAPL1234C1Z5",
  "shipping_customer_name": null,
  "shipping_address": null,
  "shipping_city": null,
  "shipping_state": null,
  "shipping_pincode": null,
  "shipping_phone": null,
  "shipping_email": null,
  "currency": "INR",
  "order_date": "2024-03-15",
  "invoice_number": "INV-001",
  "order_items": [
    {"name": "Widget", "units": 2, "selling_price": "250.00", "line_total": 500, "hsn": "8471", "tax_rate": 18, "weight": null}
  ],
  "sub_total": 500,
  "tax_amount": "90.00",
  "total_amount": 590.00,
  "payment_method": "Prepaid"
}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n{\"a\":1}\n```\n", want: `{"a":1}`},
		{in: "  {\"a\":1}  ", want: `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestDecodeInvoice(t *testing.T) {
	f, raw, err := DecodeInvoice("```json\n" + sampleAnswer + "\n```")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	require.NotNil(t, f.BillingName)
	assert.Equal(t, "Acme Traders", *f.BillingName)
	assert.Nil(t, f.BillingEmail)
	require.Len(t, f.Items, 1)
	assert.Equal(t, "2", f.Items[0].Units.Decimal.String())
	assert.Equal(t, "250", f.Items[0].SellingPrice.Decimal.String())
	assert.False(t, f.Items[0].Weight.Valid)
	assert.Equal(t, "590", f.TotalAmount.Decimal.String())
	assert.Equal(t, "90", f.TaxAmount.Decimal.String())
}

func TestDecodeInvoiceRejects(t *testing.T) {
	tests := map[string]string{
		"not json":          "Sure! Here is the invoice.",
		"unknown field":     withKeys(t, map[string]any{"merchant": "x"}),
		"missing items":     `{"invoice_number": "A1"}`,
		"bad money":         withKeys(t, map[string]any{"total_amount": "1,234.00"}),
		"wrong item type":   withKeys(t, map[string]any{"order_items": []any{withItem(map[string]any{"name": 12})}}),
		"bad gstin":         withKeys(t, map[string]any{"billing_gstin": "27AAAPL"}),
		"missing top keys":  `{"order_items":[{"name":"Widget","units":2}]}`,
		"missing item keys": withKeys(t, map[string]any{"order_items": []any{map[string]any{"name": "Widget", "units": 2}}}),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeInvoice(in)
			require.Error(t, err)
		})
	}
}

func TestDecodeInvoiceAcceptsTemplate(t *testing.T) {
	f, _, err := DecodeInvoice(withKeys(t, nil))
	require.NoError(t, err)
	assert.Nil(t, f.BillingName)
	require.Len(t, f.Items, 1)
	assert.Nil(t, f.Items[0].Name)
}

// withKeys returns the null template with fields overlaid.
func withKeys(t *testing.T, fields map[string]any) string {
	t.Helper()
	m := AnswerTemplate()
	for k, v := range fields {
		m[k] = v
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func withItem(fields map[string]any) map[string]any {
	it := ItemTemplate()
	for k, v := range fields {
		it[k] = v
	}
	return it
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
		"required":   []string{"a"},
	}
	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"a": 1}`)))
	require.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"a": "x"}`)))
}

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt("INVOICE INV-9\nTotal 100", 0)
	assert.Contains(t, p, "INVOICE INV-9")
	assert.Contains(t, p, `"order_items"`)
	assert.Contains(t, p, "Template:\n")
	assert.NotContains(t, p, "(truncated)")

	long := strings.Repeat("é", 100)
	p = BuildUserPrompt(long, 51)
	assert.Contains(t, p, "(truncated)")
	assert.Contains(t, p, strings.Repeat("é", 25)+"\n")
	assert.NotContains(t, p, strings.Repeat("é", 26))
}

type countingCompleter struct{ calls atomic.Int32 }

func (c *countingCompleter) Name() string { return "counting" }

func (c *countingCompleter) Complete(context.Context, Request) (string, error) {
	c.calls.Add(1)
	return "{}", nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingCompleter{}
	assert.Same(t, Completer(inner), NewRateLimited(inner, 0))

	limited := NewRateLimited(inner, 1)
	assert.Equal(t, "counting", limited.Name())

	_, err := limited.Complete(context.Background(), Request{})
	require.NoError(t, err)

	// The bucket is empty now; a short deadline cannot be met.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
