package ocr

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`^\s*[_\-=|]{3,}\s*$`)
	reGSTINLoose = regexp.MustCompile(`(?i)\b[0-9]{2}[a-z]{5}[0-9]{4}[a-z][1-9a-z]z[0-9a-z]\b`)
)

// keywordFixes are recognizer misreads of invoice vocabulary.
var keywordFixes = strings.NewReplacer(
	"l'lVOICE", "INVOICE",
	"lNVOlCE", "INVOICE",
	"lNVOICE", "INVOICE",
	"INV0ICE", "INVOICE",
	"GSTlN", "GSTIN",
	"GST|N", "GSTIN",
	"GST!N", "GSTIN",
	"T0TAL", "TOTAL",
	"TOTAl", "TOTAL",
	"SUBT0TAL", "SUBTOTAL",
)

// NormalizeLine cleans a single recognized line: NFKC folding, whitespace
// collapse, keyword fixes and GSTIN upper-casing. Returns "" for rule lines.
func NormalizeLine(s string) string {
	s = norm.NFKC.String(s)
	s = reTabs.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if reBoxNoise.MatchString(s) {
		return ""
	}
	s = keywordFixes.Replace(s)
	return reGSTINLoose.ReplaceAllStringFunc(s, strings.ToUpper)
}

// Normalize collapses noisy whitespace in a multi-line block and applies
// NormalizeLine to every line. Conservative: keeps line breaks; collapses
// runs of blank lines into one.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = NormalizeLine(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
