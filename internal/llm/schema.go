package llm

import "sort"

// partyKeys are the billing/shipping suffixes shared by both blocks.
var partyKeys = []string{"customer_name", "address", "city", "state", "pincode", "phone", "email"}

var itemKeys = []string{"name", "units", "selling_price", "line_total", "hsn", "tax_rate", "weight"}

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is embedded in the prompt and used locally to validate the model's answer.
// Every key is required; absent values are written as null.
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		"billing_gstin":  map[string]any{"type": []any{"string", "null"}, "pattern": `^[0-9A-Za-z]{15}$`},
		"order_date":     nullableString(),
		"invoice_number": nullableString(),
		"payment_method": nullableString(),
		"currency":       map[string]any{"type": []any{"string", "null"}, "pattern": `^[A-Za-z]{3}$`},
		"sub_total":      decimalProp(),
		"tax_amount":     decimalProp(),
		"total_amount":   decimalProp(),
		"order_items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"name":          nullableString(),
					"units":         decimalProp(),
					"selling_price": decimalProp(),
					"line_total":    decimalProp(),
					"hsn":           nullableString(),
					"tax_rate":      decimalProp(),
					"weight":        decimalProp(),
				},
				"required": append([]string(nil), itemKeys...),
			},
		},
	}
	for _, k := range partyKeys {
		props["billing_"+k] = nullableString()
		props["shipping_"+k] = nullableString()
	}

	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// AnswerTemplate is the exact answer shape with every value null and one
// blank line item. It is shown to the model next to the schema.
func AnswerTemplate() map[string]any {
	schema := BuildInvoiceJSONSchema()
	out := make(map[string]any)
	for _, k := range schema["required"].([]string) {
		out[k] = nil
	}
	out["order_items"] = []any{ItemTemplate()}
	return out
}

// ItemTemplate is one line item with every value null.
func ItemTemplate() map[string]any {
	out := make(map[string]any, len(itemKeys))
	for _, k := range itemKeys {
		out[k] = nil
	}
	return out
}

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    []any{"number", "string", "null"},
		"pattern": `^-?\d+(\.\d+)?$`, // applies to the string form only
	}
}
