package entity

import "github.com/joseph-ayodele/invoice2order/constants"

// Finding is one validator observation about a field.
type Finding struct {
	Field    string             `json:"field"`
	Severity constants.Severity `json:"severity"`
	Message  string             `json:"message"`
}

// ValidationReport travels beside an InvoiceRecord.
type ValidationReport struct {
	Findings []Finding `json:"findings"`
}

// HasErrors reports whether any finding has error severity.
func (r ValidationReport) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == constants.SeverityError {
			return true
		}
	}
	return false
}

func (r ValidationReport) Errors() []Finding   { return r.filter(constants.SeverityError) }
func (r ValidationReport) Warnings() []Finding { return r.filter(constants.SeverityWarning) }

// For returns the findings for one field.
func (r ValidationReport) For(field string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Field == field {
			out = append(out, f)
		}
	}
	return out
}

func (r ValidationReport) filter(s constants.Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}
