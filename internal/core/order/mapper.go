package order

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const (
	skuLength       = 15
	orderIDLayout   = "20060102150405"
	orderDateLayout = "2006-01-02"
)

// keyNamespace scopes idempotency keys so they never collide with other v5 UUIDs.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/joseph-ayodele/invoice2order/orders"))

var orderIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9\-_/]+`)

// Mapper projects validated records onto the order payload. It performs no I/O;
// the clock is its only input besides the record.
type Mapper struct {
	cfg common.OrderConfig
	now func() time.Time
}

// New builds a Mapper. A nil clock means time.Now.
func New(cfg common.OrderConfig, now func() time.Time) *Mapper {
	if now == nil {
		now = time.Now
	}
	cfg.OrderIDPrefix = strings.TrimSpace(cfg.OrderIDPrefix)
	return &Mapper{cfg: cfg, now: now}
}

// Map refuses records whose report carries error findings.
func (m *Mapper) Map(rec entity.InvoiceRecord, report entity.ValidationReport) (entity.OrderPayload, error) {
	if errs := report.Errors(); len(errs) > 0 {
		return entity.OrderPayload{}, fmt.Errorf("%w: %d error finding(s), first %s: %s",
			common.ErrMappingSkipped, len(errs), errs[0].Field, errs[0].Message)
	}

	now := m.now()
	bill := rec.Billing
	ship, shipIsBill := mergeShipping(bill, rec.Shipping)

	p := entity.OrderPayload{
		OrderID:        m.orderID(rec.InvoiceNumber, now),
		OrderDate:      orderDate(rec.InvoiceDate, now),
		PickupLocation: m.cfg.PickupLocation,
		ChannelID:      optional(m.cfg.ChannelID),
		InvoiceNumber:  optional(rec.InvoiceNumber),

		BillingCustomerName: bill.Name,
		BillingAddress:      bill.Address,
		BillingCity:         optional(bill.City),
		BillingPincode:      bill.PostalCode,
		BillingState:        optional(bill.State),
		BillingCountry:      m.country(bill),
		BillingEmail:        optional(bill.Email),

		ShippingIsBilling:    shipIsBill,
		ShippingCustomerName: ship.Name,
		ShippingAddress:      ship.Address,
		ShippingCity:         optional(ship.City),
		ShippingPincode:      ship.PostalCode,
		ShippingState:        optional(ship.State),
		ShippingCountry:      m.country(ship),
		ShippingEmail:        optional(ship.Email),

		OrderItems:         make([]entity.OrderItem, 0, len(rec.Items)),
		PaymentMethod:      paymentMethod(rec.PaymentMethod),
		Currency:           firstNonEmpty(rec.Currency, m.cfg.Currency),
		ShippingCharges:    decimal.Zero,
		GiftwrapCharges:    decimal.Zero,
		TransactionCharges: decimal.Zero,
		TotalDiscount:      decimal.Zero,
		SubTotal:           rec.SubTotal.Decimal.Round(2),
		Length:             decimal.NewFromFloat(m.cfg.Length),
		Breadth:            decimal.NewFromFloat(m.cfg.Breadth),
		Height:             decimal.NewFromFloat(m.cfg.Height),
		Weight:             m.weight(rec.Items),
		CustomerGSTIN:      optional(bill.GSTIN),
	}
	p.BillingPhone, p.BillingISDCode = splitPhone(bill.Phone)
	p.ShippingPhone, _ = splitPhone(ship.Phone)

	for _, it := range rec.Items {
		p.OrderItems = append(p.OrderItems, mapItem(it))
	}

	p.IdempotencyKey = IdempotencyKey(firstNonEmpty(rec.InvoiceNumber, p.OrderID), bill.GSTIN)
	return p, nil
}

// IdempotencyKey derives a stable submission key from the invoice identity.
func IdempotencyKey(invoiceNumber, gstin string) string {
	return uuid.NewSHA1(keyNamespace, []byte(invoiceNumber+"|"+gstin)).String()
}

func (m *Mapper) orderID(number string, now time.Time) string {
	n := strings.Trim(orderIDUnsafe.ReplaceAllString(number, "-"), "-")
	if n == "" {
		return m.cfg.OrderIDPrefix + now.Format(orderIDLayout)
	}
	if m.cfg.OrderIDPrefix != "" && strings.HasPrefix(strings.ToUpper(n), strings.ToUpper(m.cfg.OrderIDPrefix)) {
		return n
	}
	return m.cfg.OrderIDPrefix + n
}

func (m *Mapper) country(p entity.Party) string {
	return firstNonEmpty(p.Country, m.cfg.Country)
}

// weight sums item weight times quantity, defaulting missing weights and
// flooring the result at the configured minimum.
func (m *Mapper) weight(items []entity.LineItem) decimal.Decimal {
	def := decimal.NewFromFloat(m.cfg.DefaultItemWeight)
	total := decimal.Zero
	for _, it := range items {
		w := def
		if it.Weight.Valid && it.Weight.Decimal.IsPositive() {
			w = it.Weight.Decimal
		}
		qty := decimal.NewFromInt(1)
		if it.Quantity.Valid && it.Quantity.Decimal.IsPositive() {
			qty = it.Quantity.Decimal
		}
		total = total.Add(w.Mul(qty))
	}
	if floor := decimal.NewFromFloat(m.cfg.MinWeight); total.LessThan(floor) {
		total = floor
	}
	return total.Round(3)
}

// mergeShipping copies each empty shipping field from billing. The second
// result reports whether the two blocks describe the same recipient.
func mergeShipping(bill entity.Party, ship *entity.Party) (entity.Party, bool) {
	if ship == nil {
		return bill, true
	}
	s := *ship
	s.Name = firstNonEmpty(s.Name, bill.Name)
	s.Address = firstNonEmpty(s.Address, bill.Address)
	s.City = firstNonEmpty(s.City, bill.City)
	s.State = firstNonEmpty(s.State, bill.State)
	s.PostalCode = firstNonEmpty(s.PostalCode, bill.PostalCode)
	s.Country = firstNonEmpty(s.Country, bill.Country)
	s.Phone = firstNonEmpty(s.Phone, bill.Phone)
	s.Email = firstNonEmpty(s.Email, bill.Email)
	s.GSTIN = firstNonEmpty(s.GSTIN, bill.GSTIN)
	same := s.Name == bill.Name && s.Address == bill.Address && s.PostalCode == bill.PostalCode
	return s, same
}

func mapItem(it entity.LineItem) entity.OrderItem {
	out := entity.OrderItem{
		Name:         it.Name,
		SKU:          sku(it.Name),
		Units:        it.Quantity.Decimal,
		SellingPrice: it.UnitPrice.Decimal.Round(2),
		HSN:          optional(it.HSN),
	}
	if it.TaxRate.Valid {
		r := it.TaxRate.Decimal
		out.TaxRate = &r
	}
	return out
}

func sku(name string) string {
	r := []rune(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	if len(r) > skuLength {
		r = r[:skuLength]
	}
	return string(r)
}

func orderDate(invoiceDate string, now time.Time) string {
	if _, err := time.Parse(orderDateLayout, invoiceDate); err == nil {
		return invoiceDate
	}
	return now.Format(orderDateLayout)
}

func paymentMethod(pm string) string {
	if pm == constants.PaymentCOD {
		return constants.PaymentCOD
	}
	return constants.PaymentPrepaid
}

// splitPhone turns an E.164 number into its national number and ISD code.
// Numbers that do not parse are passed through without a code.
func splitPhone(phone string) (*string, *string) {
	if phone == "" {
		return nil, nil
	}
	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return optional(phone), nil
	}
	national := phonenumbers.GetNationalSignificantNumber(num)
	isd := "+" + strconv.Itoa(int(num.GetCountryCode()))
	return &national, &isd
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
