package constants

import (
	"regexp"
	"strings"
)

var (
	codPattern     = regexp.MustCompile(`(?i)\b(cod|c\.o\.d|cash on delivery|collect on delivery|pay on delivery)\b`)
	prepaidPattern = regexp.MustCompile(`(?i)\b(prepaid|pre-paid|paid|credit card|debit card|card|upi|online|net ?banking|neft|rtgs|imps|bank transfer)\b`)
)

// CanonicalPaymentMethod maps a free-text payment description to PaymentPrepaid or
// PaymentCOD. Cash-on-delivery wording is checked first since "pay" appears in both.
func CanonicalPaymentMethod(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	switch {
	case codPattern.MatchString(s):
		return PaymentCOD, true
	case prepaidPattern.MatchString(s):
		return PaymentPrepaid, true
	}
	return "", false
}
