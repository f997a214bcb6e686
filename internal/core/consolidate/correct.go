package consolidate

import (
	"strings"
	"unicode"
)

const (
	leadingStray  = ".,;:'\"|`~_"
	trailingStray = ",;'\"|`~_"
)

// Short all-caps runs are usually codes (postcodes, SKUs, PAN fragments).
// Below this length a digit is only swapped when the result is a known label.
const minCapsWordLen = 6

var capsLabels = map[string]bool{
	"BILL": true, "SHIP": true, "SOLD": true, "TOTAL": true, "TAX": true,
	"GST": true, "CGST": true, "SGST": true, "IGST": true, "DATE": true,
	"QTY": true, "RATE": true, "ITEM": true, "ITEMS": true, "CODE": true,
	"CITY": true, "STATE": true, "PHONE": true, "EMAIL": true, "NO": true,
}

// Correct applies the deterministic recognizer-error fixes to one line:
// letter/digit confusions (0/O, 1/l/I) inside alphanumeric runs, decided by
// the run's other characters, and stray punctuation at the line ends.
func Correct(s string) string {
	s = strings.TrimLeft(s, leadingStray)
	s = strings.TrimRight(s, trailingStray)
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	rs := []rune(s)
	start := -1
	for i := 0; i <= len(rs); i++ {
		alnum := i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]))
		if alnum && start < 0 {
			start = i
		}
		if !alnum && start >= 0 {
			fixRun(rs[start:i])
			start = -1
		}
	}
	return string(rs)
}

func isDigitLike(r rune) bool { return r == 'O' || r == 'o' || r == 'l' || r == 'I' }

// fixRun rewrites a run in place when it is clearly numeric with a few
// letter look-alikes, or clearly a word with a few digit look-alikes.
func fixRun(run []rune) {
	var digits, letters, lookalikeLetters, lookalikeDigits, upper int
	for _, r := range run {
		switch {
		case unicode.IsDigit(r):
			digits++
			if r == '0' || r == '1' {
				lookalikeDigits++
			}
		case unicode.IsLetter(r):
			letters++
			if isDigitLike(r) {
				lookalikeLetters++
			}
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}

	switch {
	// numeric: every letter is a digit look-alike, and letters do not outnumber digits
	case digits >= 1 && letters > 0 && letters == lookalikeLetters && letters <= digits:
		for i, r := range run {
			switch r {
			case 'O', 'o':
				run[i] = '0'
			case 'l', 'I':
				run[i] = '1'
			}
		}
	// word: a single 0/1 digit, clearly outnumbered by letters; it is
	// replaced only between two letters so trailing serials stay intact
	case digits == 1 && lookalikeDigits == 1 && letters >= 3:
		allUpper := upper == letters
		fixed := append([]rune(nil), run...)
		for i := 1; i < len(fixed)-1; i++ {
			if !unicode.IsLetter(fixed[i-1]) || !unicode.IsLetter(fixed[i+1]) {
				continue
			}
			switch fixed[i] {
			case '0':
				if allUpper {
					fixed[i] = 'O'
				} else {
					fixed[i] = 'o'
				}
			case '1':
				if allUpper {
					fixed[i] = 'I'
				} else {
					fixed[i] = 'l'
				}
			}
		}
		if allUpper && len(run) < minCapsWordLen && !capsLabels[string(fixed)] {
			return
		}
		copy(run, fixed)
	}
}
