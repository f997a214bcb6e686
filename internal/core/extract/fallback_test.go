package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/constants"
)

const sampleInvoice = `ACME SUPPLIES PVT LTD
GSTIN: 29ABCDE1234F1Z5
TAX INVOICE
Invoice No: INV-2024-001
Invoice Date: 15/03/2024
Bill To:
Sharma Traders
12 MG Road
Pune, Maharashtra - 411001
GSTIN: 27AAAPL1234C1Z5
Phone: +91 98765 43210
Email: accounts@sharma.example
Ship To:
Sharma Warehouse
Plot 7, MIDC
Nashik, Maharashtra 422010

S.No Description HSN Qty Rate Amount
1 Steel Widget 8471 2 250.00 500.00
2 Copper Wire 8544 10 35.50 355.00
Sub Total: 855.00
CGST @ 9%: 76.95
SGST @ 9%: 76.95
Grand Total: ₹ 1,008.90
Payment: UPI`

func TestFallbackFullInvoice(t *testing.T) {
	rec := Fallback(strings.Split(sampleInvoice, "\n"))

	assert.Equal(t, constants.MethodFallback, rec.Method)
	assert.Equal(t, "INV-2024-001", rec.InvoiceNumber)
	assert.Equal(t, "15/03/2024", rec.InvoiceDate)
	assert.Equal(t, "INR", rec.Currency)
	assert.Equal(t, constants.PaymentPrepaid, rec.PaymentMethod)

	b := rec.Billing
	assert.Equal(t, "Sharma Traders", b.Name)
	assert.Equal(t, "12 MG Road", b.Address)
	assert.Equal(t, "Pune", b.City)
	assert.Equal(t, "Maharashtra", b.State)
	assert.Equal(t, "411001", b.PostalCode)
	assert.Equal(t, "27AAAPL1234C1Z5", b.GSTIN, "buyer GSTIN, not the seller's header GSTIN")
	assert.Equal(t, "+91 98765 43210", b.Phone)
	assert.Equal(t, "accounts@sharma.example", b.Email)

	require.NotNil(t, rec.Shipping)
	assert.Equal(t, "Sharma Warehouse", rec.Shipping.Name)
	assert.Equal(t, "Plot 7, MIDC", rec.Shipping.Address)
	assert.Equal(t, "Nashik", rec.Shipping.City)
	assert.Equal(t, "422010", rec.Shipping.PostalCode)

	require.Len(t, rec.Items, 2)
	assert.Equal(t, "Steel Widget", rec.Items[0].Name)
	assert.Equal(t, "8471", rec.Items[0].HSN)
	assert.Equal(t, "2", rec.Items[0].Quantity.Decimal.String())
	assert.Equal(t, "250", rec.Items[0].UnitPrice.Decimal.String())
	assert.Equal(t, "500", rec.Items[0].LineTotal.Decimal.String())
	assert.Equal(t, "Copper Wire", rec.Items[1].Name)
	assert.Equal(t, "35.5", rec.Items[1].UnitPrice.Decimal.String())

	assert.Equal(t, "855", rec.SubTotal.Decimal.String())
	assert.Equal(t, "153.9", rec.Tax.Decimal.String())
	assert.Equal(t, "1008.9", rec.Total.Decimal.String())
}

func TestFallbackLeavesUnknownFieldsAbsent(t *testing.T) {
	text := "Invoice #A-77\nDate: 2024-03-15\nGSTIN: 27AAAPL1234C1Z5\nTotal 1180\nCash on Delivery"
	rec := Fallback(strings.Split(text, "\n"))

	assert.Equal(t, "A-77", rec.InvoiceNumber)
	assert.Equal(t, "2024-03-15", rec.InvoiceDate)
	assert.Equal(t, "27AAAPL1234C1Z5", rec.Billing.GSTIN)
	assert.Equal(t, constants.PaymentCOD, rec.PaymentMethod)
	assert.Equal(t, "1180", rec.Total.Decimal.String())

	assert.Empty(t, rec.Billing.Name)
	assert.Empty(t, rec.Billing.Address)
	assert.Nil(t, rec.Shipping)
	assert.Empty(t, rec.Items)
	assert.False(t, rec.SubTotal.Valid)
	assert.False(t, rec.Tax.Valid)
}

func TestFallbackHeaderlessRowsNeedConsistency(t *testing.T) {
	lines := []string{
		"Widget 2 250.00 500.00",
		"Gadget 3 10.00 99.00",
		"Phone 98765 43210 12345",
	}
	items := findItems(lines)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Name)
}

func TestFallbackTaxFromTotalLine(t *testing.T) {
	lines := []string{"Subtotal 1,000.00", "Total Tax 180.00", "Total Amount 1,180.00"}
	sub, tax, total := findTotals(lines)
	assert.Equal(t, "1000", sub.Decimal.String())
	assert.Equal(t, "180", tax.Decimal.String())
	assert.Equal(t, "1180", total.Decimal.String())
}

func TestParseLocality(t *testing.T) {
	tests := []struct {
		in                       string
		street, city, state, pin string
	}{
		{"Pune, Maharashtra - 411001", "", "Pune", "Maharashtra", "411001"},
		{"4th Cross, Indiranagar, Bengaluru, KA 560 038", "4th Cross, Indiranagar", "Bengaluru", "Karnataka", "560038"},
		{"Chennai Tamil Nadu PIN: 600001", "", "Chennai", "Tamil Nadu", "600001"},
		{"Sector 5, Gurugram 122001", "Sector 5", "Gurugram", "", "122001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			street, city, state, pin := parseLocality(tt.in)
			assert.Equal(t, tt.street, street)
			assert.Equal(t, tt.city, city)
			assert.Equal(t, tt.state, state)
			assert.Equal(t, tt.pin, pin)
		})
	}
}

func TestFindInvoiceNumberNeedsDigits(t *testing.T) {
	assert.Empty(t, findInvoiceNumber([]string{"TAX INVOICE", "Bill To: Acme", "Invoice Date: 01/02/2024"}))
	assert.Equal(t, "123/24-25", findInvoiceNumber([]string{"Bill No. 123/24-25"}))
}
