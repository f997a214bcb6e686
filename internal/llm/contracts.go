package llm

import (
	"context"

	"github.com/shopspring/decimal"
)

// Request is one completion call against the configured model endpoint.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a JSON object response where it supports one.
	JSON bool
}

// Completer is the single language-model endpoint the extractor talks to.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// InvoiceFields is the JSON shape we request from the model.
// Missing values are null; money may arrive as a number or a decimal string.
type InvoiceFields struct {
	BillingName     *string `json:"billing_customer_name"`
	BillingAddress  *string `json:"billing_address"`
	BillingCity     *string `json:"billing_city"`
	BillingState    *string `json:"billing_state"`
	BillingPincode  *string `json:"billing_pincode"`
	BillingPhone    *string `json:"billing_phone"`
	BillingEmail    *string `json:"billing_email"`
	BillingGSTIN    *string `json:"billing_gstin"`
	ShippingName    *string `json:"shipping_customer_name"`
	ShippingAddress *string `json:"shipping_address"`
	ShippingCity    *string `json:"shipping_city"`
	ShippingState   *string `json:"shipping_state"`
	ShippingPincode *string `json:"shipping_pincode"`
	ShippingPhone   *string `json:"shipping_phone"`
	ShippingEmail   *string `json:"shipping_email"`
	OrderDate       *string `json:"order_date"`
	InvoiceNumber   *string `json:"invoice_number"`
	PaymentMethod   *string `json:"payment_method"`
	Currency        *string `json:"currency"`

	Items       []ItemFields        `json:"order_items"`
	SubTotal    decimal.NullDecimal `json:"sub_total"`
	TaxAmount   decimal.NullDecimal `json:"tax_amount"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

// ItemFields is one entry of InvoiceFields.Items.
type ItemFields struct {
	Name         *string             `json:"name"`
	Units        decimal.NullDecimal `json:"units"`
	SellingPrice decimal.NullDecimal `json:"selling_price"`
	LineTotal    decimal.NullDecimal `json:"line_total"`
	HSN          *string             `json:"hsn"`
	TaxRate      decimal.NullDecimal `json:"tax_rate"`
	Weight       decimal.NullDecimal `json:"weight"`
}
