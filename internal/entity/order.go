package entity

import "github.com/shopspring/decimal"

// OrderItem is one line of an order payload.
type OrderItem struct {
	Name         string           `json:"name"`
	SKU          string           `json:"sku"`
	Units        decimal.Decimal  `json:"units"`
	SellingPrice decimal.Decimal  `json:"selling_price"`
	Discount     *decimal.Decimal `json:"discount"`
	TaxRate      *decimal.Decimal `json:"tax"`
	HSN          *string          `json:"hsn"`
}

// OrderPayload is the external order schema. Optional fields are pointers so
// an unmapped value serializes as null instead of disappearing.
type OrderPayload struct {
	OrderID        string  `json:"order_id"`
	OrderDate      string  `json:"order_date"`
	PickupLocation string  `json:"pickup_location"`
	ChannelID      *string `json:"channel_id"`
	InvoiceNumber  *string `json:"invoice_number"`
	Comment        *string `json:"comment"`

	BillingCustomerName string  `json:"billing_customer_name"`
	BillingLastName     *string `json:"billing_last_name"`
	BillingAddress      string  `json:"billing_address"`
	BillingAddress2     *string `json:"billing_address_2"`
	BillingCity         *string `json:"billing_city"`
	BillingPincode      string  `json:"billing_pincode"`
	BillingState        *string `json:"billing_state"`
	BillingCountry      string  `json:"billing_country"`
	BillingEmail        *string `json:"billing_email"`
	BillingPhone        *string `json:"billing_phone"`
	BillingISDCode      *string `json:"billing_isd_code"`

	ShippingIsBilling    bool    `json:"shipping_is_billing"`
	ShippingCustomerName string  `json:"shipping_customer_name"`
	ShippingLastName     *string `json:"shipping_last_name"`
	ShippingAddress      string  `json:"shipping_address"`
	ShippingAddress2     *string `json:"shipping_address_2"`
	ShippingCity         *string `json:"shipping_city"`
	ShippingPincode      string  `json:"shipping_pincode"`
	ShippingState        *string `json:"shipping_state"`
	ShippingCountry      string  `json:"shipping_country"`
	ShippingEmail        *string `json:"shipping_email"`
	ShippingPhone        *string `json:"shipping_phone"`

	OrderItems         []OrderItem     `json:"order_items"`
	PaymentMethod      string          `json:"payment_method"`
	Currency           string          `json:"currency"`
	ShippingCharges    decimal.Decimal `json:"shipping_charges"`
	GiftwrapCharges    decimal.Decimal `json:"giftwrap_charges"`
	TransactionCharges decimal.Decimal `json:"transaction_charges"`
	TotalDiscount      decimal.Decimal `json:"total_discount"`
	SubTotal           decimal.Decimal `json:"sub_total"`
	Length             decimal.Decimal `json:"length"`
	Breadth            decimal.Decimal `json:"breadth"`
	Height             decimal.Decimal `json:"height"`
	Weight             decimal.Decimal `json:"weight"`
	CustomerGSTIN      *string         `json:"customer_gstin"`

	// IdempotencyKey goes to the submission client as a header, not in the body.
	IdempotencyKey string `json:"-"`
}
