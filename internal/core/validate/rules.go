package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// Rule checks one value and returns the failure message, or "" when the value
// passes. Every rule except Required accepts the empty string.
type Rule func(value string) string

// checker collects findings for one record.
type checker struct {
	findings []entity.Finding
}

func (c *checker) add(field string, sev constants.Severity, format string, args ...any) {
	c.findings = append(c.findings, entity.Finding{
		Field:    field,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Field runs rules in order and records the first failure at sev.
func (c *checker) Field(field, value string, sev constants.Severity, rules ...Rule) *checker {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			c.add(field, sev, "%s", msg)
			break
		}
	}
	return c
}

func (c *checker) report() entity.ValidationReport {
	return entity.ValidationReport{Findings: c.findings}
}

var (
	gstinPattern   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	indiaPin       = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	currencyRegex  = regexp.MustCompile(`^[A-Z]{3}$`)
	paymentMethods = map[string]bool{constants.PaymentPrepaid: true, constants.PaymentCOD: true}
)

func Required(value string) string {
	if strings.TrimSpace(value) == "" {
		return "is required"
	}
	return ""
}

func MaxLength(max int) Rule {
	return func(value string) string {
		if utf8.RuneCountInString(value) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
		return ""
	}
}

// GSTIN checks the 15-character layout: state code, PAN, entity number, 'Z', check character.
func GSTIN(value string) string {
	if value == "" {
		return ""
	}
	if len(value) != 15 || !gstinPattern.MatchString(value) {
		return "invalid format"
	}
	if _, ok := constants.GSTStateCodes[value[:2]]; !ok {
		return "invalid format: unknown state code " + value[:2]
	}
	return ""
}

// PostalCode checks a postal code for the locale region. India uses the six-digit
// PIN with no leading zero; other regions use the validator's per-country patterns.
func PostalCode(v *validator.Validate, locale string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		if locale == "IN" {
			if !indiaPin.MatchString(value) {
				return "invalid PIN code"
			}
			return ""
		}
		if err := v.Var(value, "postcode_iso3166_alpha2="+locale); err != nil {
			return "invalid postal code for region " + locale
		}
		return ""
	}
}

// Phone checks the number against the numbering plan of region.
func Phone(region string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		num, err := phonenumbers.Parse(value, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return "invalid phone number for region " + region
		}
		return ""
	}
}

func Email(v *validator.Validate) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		if err := v.Var(value, "email"); err != nil {
			return "invalid email address"
		}
		return ""
	}
}

// CurrencyCode checks for an ISO 4217 code.
func CurrencyCode(value string) string {
	if value == "" {
		return ""
	}
	if !currencyRegex.MatchString(value) {
		return "must be 3 uppercase letters (ISO 4217)"
	}
	return ""
}

// CanonicalDate accepts only dates already rewritten to YYYY-MM-DD.
func CanonicalDate(value string) string {
	if value == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return "unparseable date " + value
	}
	return ""
}

func PaymentMethod(value string) string {
	if value == "" || paymentMethods[value] {
		return ""
	}
	return "unrecognized payment method " + value
}

// State flags names that did not resolve to a known Indian state.
func State(locale string) Rule {
	return func(value string) string {
		if value == "" || locale != "IN" {
			return ""
		}
		if _, ok := constants.CanonicalState(value); !ok {
			return "unknown state " + value
		}
		return ""
	}
}
