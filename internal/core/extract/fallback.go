package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

const maxBlockLines = 8

const dateValue = `\d{1,2}[\-/.]\d{1,2}[\-/.]\d{2,4}` +
	`|\d{4}[\-/.]\d{1,2}[\-/.]\d{1,2}` +
	`|\d{1,2}(?:st|nd|rd|th)?[\s\-]+[A-Za-z]{3,9}\.?[\s,\-]+\d{2,4}` +
	`|[A-Za-z]{3,9}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`

var (
	invoiceNoRe   = regexp.MustCompile(`(?i)\b(?:invoice|inv|bill)\b\.?\s*(?:no\.?|number|num|#)?\s*[:#.\-]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	dateLabelRe   = regexp.MustCompile(`(?i)\b(?:invoice\s+date|inv\.?\s+date|date\s+of\s+issue|dated|date|dt)\b\.?\s*[:\-]?\s*(` + dateValue + `)`)
	dateAnyRe     = regexp.MustCompile(`(?i)\b(` + dateValue + `)\b`)
	dateSkipRe    = regexp.MustCompile(`(?i)\b(due|expiry|delivery)\b`)
	gstinLabelRe  = regexp.MustCompile(`(?i)\bGST\s*(?:IN|No|Number|Reg(?:istration)?\.?\s*No)(?:\s*/\s*UIN)?\s*[:.\-]*\s*([0-9A-Z]{10,16})\b`)
	gstinRe       = regexp.MustCompile(`\b(\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z])\b`)
	phoneRe       = regexp.MustCompile(`(?i)\b(?:ph(?:one)?|mob(?:ile)?|tel(?:ephone)?|contact|cell|whatsapp)\b\.?\s*(?:no\.?)?\s*[:.\-]?\s*(\+?\d[\d\s\-()]{7,16}\d)`)
	emailRe       = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)
	pinLabelRe    = regexp.MustCompile(`(?i)\b(?:pin(?:\s*code)?|postal\s+code|zip(?:\s*code)?)\b\s*[:.\-]?\s*([1-9]\d{2}\s?\d{3})\b`)
	pinRe         = regexp.MustCompile(`\b([1-9]\d{2}\s?\d{3})\b`)
	stateLabelRe  = regexp.MustCompile(`(?i)^state\b\s*(?:name)?\s*[:\-]\s*(.+)$`)
	stateCodeRe   = regexp.MustCompile(`(?i)\bstate\s+code\b`)
	namePrefixRe  = regexp.MustCompile(`(?i)^(?:name|company|m/s\.?)\s*[:\-]?\s*`)
	billHeaderRe  = regexp.MustCompile(`(?i)^\s*(?:bill(?:ed)?\s*to|billing\s+(?:address|details)|buyer(?:'s)?(?:\s+details)?|customer(?:\s+details|\s+name)?|sold\s+to|invoice\s+to)\b\s*[:\-]?\s*(.*)$`)
	shipHeaderRe  = regexp.MustCompile(`(?i)^\s*(?:ship(?:ped)?\s*to|shipping\s+(?:address|details)|deliver(?:y)?\s+(?:to|address)|consignee(?:\s+details)?)\b\s*[:\-]?\s*(.*)$`)
	tableHeadRe   = regexp.MustCompile(`(?i)\b(description|items?|particulars|product|goods)\b`)
	tableQtyRe    = regexp.MustCompile(`(?i)\b(qty|quantity|units?)\b`)
	subtotalRe    = regexp.MustCompile(`(?i)\b(sub\s*-?\s*total|taxable\s+(?:value|amount)|total\s+before\s+tax|net\s+amount)\b`)
	taxPartRe     = regexp.MustCompile(`(?i)\b(cgst|sgst|utgst|igst)\b`)
	taxTotalRe    = regexp.MustCompile(`(?i)\b(total\s+tax|tax\s+amount|total\s+gst|gst\s+amount|vat|tax)\b`)
	totalRe       = regexp.MustCompile(`(?i)\b(grand\s+total|total\s+amount|amount\s+payable|invoice\s+total|net\s+payable|balance\s+due|total)\b`)
	totalSkipRe   = regexp.MustCompile(`(?i)\b(words|qty|quantity|items|discount)\b`)
	amountRe      = regexp.MustCompile(`(?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d{1,2})?`)
	currencyINRRe = regexp.MustCompile(`(?i)(₹|\brs\.?\s*\d|\binr\b)`)
	currencyUSDRe = regexp.MustCompile(`(?i)(\$\s*\d|\busd\b)`)
	currencyEURRe = regexp.MustCompile(`(?i)(€|\beur\b)`)
	currencyGBPRe = regexp.MustCompile(`(?i)(£|\bgbp\b)`)

	itemRowRe = regexp.MustCompile(`(?i)^(?:\d{1,3}[.)]?\s+)?(.+?)\s+(?:(\d{4,8})\s+)?(\d+(?:\.\d+)?)\s*(?:nos\.?|pcs\.?|units?|qty|kg|ea)?\s+` +
		`(?:(?:rs\.?|₹|inr)\s*)?([\d,]+(?:\.\d{1,2})?)\s+(?:(\d{1,2}(?:\.\d+)?)\s*%\s+)?(?:(?:rs\.?|₹|inr)\s*)?([\d,]+(?:\.\d{1,2})?)$`)
)

// Fallback extracts whatever fields its fixed rule library can find. Fields it
// cannot determine are left empty; nothing is guessed.
func Fallback(lines []string) entity.InvoiceRecord {
	clean := make([]string, 0, len(lines))
	for _, l := range lines {
		clean = append(clean, strings.TrimSpace(l))
	}
	full := strings.Join(clean, "\n")

	rec := entity.InvoiceRecord{
		InvoiceNumber: findInvoiceNumber(clean),
		InvoiceDate:   findDate(clean),
		Currency:      findCurrency(full),
		Method:        constants.MethodFallback,
	}
	if pm, ok := constants.CanonicalPaymentMethod(full); ok {
		rec.PaymentMethod = pm
	}

	bill, billFound := findBlock(clean, billHeaderRe)
	ship, shipFound := findBlock(clean, shipHeaderRe)
	if billFound {
		rec.Billing = parseParty(bill)
	}
	if shipFound {
		p := parseParty(ship)
		if !p.IsZero() {
			rec.Shipping = &p
		}
	}
	if !billFound {
		// No labelled block: fall back to document-level labelled values.
		rec.Billing.GSTIN = findGSTIN(clean)
		rec.Billing.Phone = findPhone(clean)
		rec.Billing.Email = findEmail(clean)
	}

	rec.Items = findItems(clean)
	rec.SubTotal, rec.Tax, rec.Total = findTotals(clean)
	return rec
}

func findInvoiceNumber(lines []string) string {
	for _, l := range lines {
		for _, m := range invoiceNoRe.FindAllStringSubmatch(l, -1) {
			v := strings.Trim(m[1], "-/")
			if strings.ContainsAny(v, "0123456789") {
				return v
			}
		}
	}
	return ""
}

func findDate(lines []string) string {
	for _, l := range lines {
		if dateSkipRe.MatchString(l) {
			continue
		}
		if m := dateLabelRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	for _, l := range lines {
		if dateSkipRe.MatchString(l) {
			continue
		}
		if m := dateAnyRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func findCurrency(text string) string {
	switch {
	case currencyINRRe.MatchString(text):
		return "INR"
	case currencyUSDRe.MatchString(text):
		return "USD"
	case currencyEURRe.MatchString(text):
		return "EUR"
	case currencyGBPRe.MatchString(text):
		return "GBP"
	}
	return ""
}

func findGSTIN(lines []string) string {
	for _, l := range lines {
		if m := gstinLabelRe.FindStringSubmatch(l); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	for _, l := range lines {
		if m := gstinRe.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	return ""
}

func findPhone(lines []string) string {
	for _, l := range lines {
		if m := phoneRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func findEmail(lines []string) string {
	for _, l := range lines {
		if m := emailRe.FindString(l); m != "" {
			return m
		}
	}
	return ""
}

// isBoundary reports lines that end a party block.
func isBoundary(l string) bool {
	return l == "" ||
		billHeaderRe.MatchString(l) ||
		shipHeaderRe.MatchString(l) ||
		isTableHeader(l) ||
		subtotalRe.MatchString(l) ||
		totalRe.MatchString(l) ||
		dateLabelRe.MatchString(l) ||
		(invoiceNoRe.MatchString(l) && findInvoiceNumber([]string{l}) != "")
}

// findBlock returns the lines of the first block introduced by header, with any
// text after the header on the same line as the first entry.
func findBlock(lines []string, header *regexp.Regexp) ([]string, bool) {
	for i, l := range lines {
		m := header.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		var block []string
		if rest := strings.TrimSpace(m[1]); rest != "" {
			block = append(block, rest)
		}
		for j := i + 1; j < len(lines) && len(block) < maxBlockLines; j++ {
			if isBoundary(lines[j]) {
				break
			}
			block = append(block, lines[j])
		}
		return block, true
	}
	return nil, false
}

func parseParty(block []string) entity.Party {
	var p entity.Party
	var plain []string
	for _, l := range block {
		switch {
		case gstinLabelRe.MatchString(l):
			p.GSTIN = strings.ToUpper(gstinLabelRe.FindStringSubmatch(l)[1])
		case gstinRe.MatchString(l) && p.GSTIN == "":
			p.GSTIN = gstinRe.FindStringSubmatch(l)[1]
		case phoneRe.MatchString(l):
			p.Phone = strings.TrimSpace(phoneRe.FindStringSubmatch(l)[1])
		case emailRe.MatchString(l):
			p.Email = emailRe.FindString(l)
		case stateCodeRe.MatchString(l):
			// "State Code: 27" carries nothing the GSTIN does not.
		case stateLabelRe.MatchString(l):
			p.State = strings.TrimSpace(stateLabelRe.FindStringSubmatch(l)[1])
		default:
			plain = append(plain, l)
		}
	}
	if len(plain) == 0 {
		return p
	}

	p.Name = strings.TrimSpace(namePrefixRe.ReplaceAllString(plain[0], ""))
	address := plain[1:]

	// The locality line carries the PIN, or failing that a state name.
	loc := -1
	for i := len(address) - 1; i >= 0; i-- {
		if pinLabelRe.MatchString(address[i]) || pinRe.MatchString(address[i]) {
			loc = i
			break
		}
	}
	if loc < 0 {
		for i := len(address) - 1; i >= 0; i-- {
			if _, ok := constants.FindState(address[i]); ok {
				loc = i
				break
			}
		}
	}

	if loc >= 0 {
		street, city, state, pin := parseLocality(address[loc])
		p.City, p.PostalCode = city, pin
		if p.State == "" {
			p.State = state
		}
		rest := append([]string{}, address[:loc]...)
		if street != "" {
			rest = append(rest, street)
		}
		rest = append(rest, address[loc+1:]...)
		address = rest
	}
	p.Address = strings.Join(address, ", ")
	return p
}

// parseLocality splits "12 MG Road, Pune, Maharashtra - 411001" into its parts.
func parseLocality(line string) (street, city, state, pin string) {
	if m := pinLabelRe.FindStringSubmatchIndex(line); m != nil {
		pin = strings.ReplaceAll(line[m[2]:m[3]], " ", "")
		line = line[:m[0]] + line[m[1]:]
	} else if m := pinRe.FindAllStringSubmatchIndex(line, -1); m != nil {
		last := m[len(m)-1]
		pin = strings.ReplaceAll(line[last[2]:last[3]], " ", "")
		line = line[:last[0]] + line[last[1]:]
	}

	var parts []string
	for _, part := range strings.Split(line, ",") {
		part = strings.Trim(strings.TrimSpace(part), "-–. ")
		if part != "" {
			parts = append(parts, part)
		}
	}

	stateIdx := -1
	for i, part := range parts {
		if s, ok := constants.CanonicalState(part); ok {
			state, stateIdx = s, i
			break
		}
		if s, ok := constants.FindState(part); ok {
			state, stateIdx = s, i
			// "Pune Maharashtra" in a single part: strip the state to leave the city.
			if rest := strings.TrimSpace(removeFold(part, s)); rest != "" {
				parts[i] = rest
				stateIdx = i + 1
				parts = append(parts[:i+1], append([]string{s}, parts[i+1:]...)...)
			}
			break
		}
	}

	switch {
	case stateIdx > 0:
		city = parts[stateIdx-1]
		street = strings.Join(parts[:stateIdx-1], ", ")
	case stateIdx < 0 && len(parts) > 0:
		city = parts[len(parts)-1]
		street = strings.Join(parts[:len(parts)-1], ", ")
	}
	return street, city, state, pin
}

func removeFold(s, sub string) string {
	i := strings.Index(strings.ToLower(s), strings.ToLower(sub))
	if i < 0 {
		return s
	}
	return s[:i] + s[i+len(sub):]
}

func isTableHeader(l string) bool {
	return tableHeadRe.MatchString(l) && tableQtyRe.MatchString(l) && len(amountRe.FindAllString(l, -1)) == 0
}

func isTotalsLine(l string) bool {
	return subtotalRe.MatchString(l) || taxPartRe.MatchString(l) || totalRe.MatchString(l) ||
		(taxTotalRe.MatchString(l) && !strings.Contains(strings.ToLower(l), "invoice"))
}

// findItems reads rows under the item table header. Without a header, only
// rows whose quantity times price reproduces the amount are accepted.
func findItems(lines []string) []entity.LineItem {
	start := -1
	for i, l := range lines {
		if isTableHeader(l) {
			start = i + 1
			break
		}
	}

	var items []entity.LineItem
	if start >= 0 {
		for _, l := range lines[start:] {
			if isTotalsLine(l) {
				break
			}
			if item, ok := parseItemRow(l); ok {
				items = append(items, item)
			}
		}
		return items
	}

	for _, l := range lines {
		if isTotalsLine(l) {
			continue
		}
		item, ok := parseItemRow(l)
		if ok && rowConsistent(item) {
			items = append(items, item)
		}
	}
	return items
}

func parseItemRow(l string) (entity.LineItem, bool) {
	m := itemRowRe.FindStringSubmatch(strings.TrimSpace(l))
	if m == nil {
		return entity.LineItem{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" || !strings.ContainsFunc(name, isLetter) {
		return entity.LineItem{}, false
	}
	item := entity.LineItem{
		Name:      name,
		HSN:       m[2],
		Quantity:  nullDecimal(m[3]),
		UnitPrice: nullDecimal(m[4]),
		TaxRate:   nullDecimal(m[5]),
		LineTotal: nullDecimal(m[6]),
	}
	return item, item.Quantity.Valid && item.UnitPrice.Valid
}

func rowConsistent(item entity.LineItem) bool {
	if !item.LineTotal.Valid {
		return false
	}
	net := item.Quantity.Decimal.Mul(item.UnitPrice.Decimal)
	if net.Sub(item.LineTotal.Decimal).Abs().LessThanOrEqual(decimal.NewFromInt(1)) {
		return true
	}
	if item.TaxRate.Valid {
		gross := net.Mul(decimal.NewFromInt(100).Add(item.TaxRate.Decimal)).Div(decimal.NewFromInt(100))
		return gross.Sub(item.LineTotal.Decimal).Abs().LessThanOrEqual(decimal.NewFromInt(1))
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

var totalRank = map[string]int{
	"grand total":    4,
	"amount payable": 3,
	"net payable":    3,
	"invoice total":  3,
	"total amount":   3,
	"balance due":    2,
	"total":          1,
}

func findTotals(lines []string) (sub, tax, total decimal.NullDecimal) {
	var parts decimal.NullDecimal
	var taxTotal decimal.NullDecimal
	bestRank := 0

	for _, l := range lines {
		switch {
		case subtotalRe.MatchString(l):
			if v, ok := amountAfter(l, subtotalRe); ok {
				sub = v
			}
		case taxPartRe.MatchString(l):
			if v, ok := amountAfter(l, taxPartRe); ok {
				if parts.Valid {
					parts.Decimal = parts.Decimal.Add(v.Decimal)
				} else {
					parts = v
				}
			}
		case totalRe.MatchString(l) && !totalSkipRe.MatchString(l) && !taxTotalLabel(l):
			label := strings.ToLower(strings.Join(strings.Fields(totalRe.FindString(l)), " "))
			rank := totalRank[label]
			if v, ok := amountAfter(l, totalRe); ok && rank >= bestRank {
				total, bestRank = v, rank
			}
		case taxTotalRe.MatchString(l) && !strings.Contains(strings.ToLower(l), "invoice"):
			if v, ok := amountAfter(l, taxTotalRe); ok {
				taxTotal = v
			}
		}
	}

	if parts.Valid {
		tax = parts
	} else {
		tax = taxTotal
	}
	return sub, tax, total
}

func taxTotalLabel(l string) bool {
	m := taxTotalRe.FindString(l)
	return m != "" && strings.Contains(strings.ToLower(m), "total")
}

// amountAfter returns the last amount on the line after the label match,
// skipping percentages.
func amountAfter(l string, label *regexp.Regexp) (decimal.NullDecimal, bool) {
	loc := label.FindStringIndex(l)
	if loc == nil {
		return decimal.NullDecimal{}, false
	}
	tail := l[loc[1]:]
	var last string
	for _, m := range amountRe.FindAllStringIndex(tail, -1) {
		rest := strings.TrimLeft(tail[m[1]:], " ")
		if strings.HasPrefix(rest, "%") {
			continue
		}
		last = tail[m[0]:m[1]]
	}
	if last == "" {
		return decimal.NullDecimal{}, false
	}
	v := nullDecimal(last)
	return v, v.Valid
}
