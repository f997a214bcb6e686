package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// SystemPrompt is the fixed instruction block sent with every extraction.
const SystemPrompt = "You are an invoice data extraction engine. Extract structured fields from the text of a B2B invoice. " +
	"Return ONLY a JSON object that matches the provided JSON Schema, with no explanations and no Markdown. " +
	"Write numbers as plain decimals without currency symbols or thousands separators. " +
	"Write dates as YYYY-MM-DD when the text makes the date unambiguous, otherwise copy the date as printed. " +
	"A GSTIN is exactly 15 characters. Indian PIN codes are 6 digits. " +
	"Include every key of the template, using null for any field that is not present in the text. Never invent values."

// BuildUserPrompt packages the consolidated text and the schema. Text longer than
// maxChars is truncated so the request stays within the model's context.
func BuildUserPrompt(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	truncated := false
	if maxChars > 0 && len(text) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		truncated = true
	}

	var b strings.Builder
	b.WriteString("Invoice text:\n")
	b.WriteString(text)
	if truncated {
		b.WriteString("\n…(truncated)")
	}
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(BuildInvoiceJSONSchema()))
	b.WriteString("\n\nTemplate:\n")
	b.WriteString(mustJSON(AnswerTemplate()))
	b.WriteString("\n\nReturn ONLY the JSON object.")
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
