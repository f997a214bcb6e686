package constants

import (
	"strings"
	"unicode"
)

// GSTStateCodes maps the two-digit GST state code to the canonical state name.
var GSTStateCodes = map[string]string{
	"01": "Jammu and Kashmir",
	"02": "Himachal Pradesh",
	"03": "Punjab",
	"04": "Chandigarh",
	"05": "Uttarakhand",
	"06": "Haryana",
	"07": "Delhi",
	"08": "Rajasthan",
	"09": "Uttar Pradesh",
	"10": "Bihar",
	"11": "Sikkim",
	"12": "Arunachal Pradesh",
	"13": "Nagaland",
	"14": "Manipur",
	"15": "Mizoram",
	"16": "Tripura",
	"17": "Meghalaya",
	"18": "Assam",
	"19": "West Bengal",
	"20": "Jharkhand",
	"21": "Odisha",
	"22": "Chhattisgarh",
	"23": "Madhya Pradesh",
	"24": "Gujarat",
	"25": "Daman and Diu",
	"26": "Dadra and Nagar Haveli",
	"27": "Maharashtra",
	"28": "Andhra Pradesh",
	"29": "Karnataka",
	"30": "Goa",
	"31": "Lakshadweep",
	"32": "Kerala",
	"33": "Tamil Nadu",
	"34": "Puducherry",
	"35": "Andaman and Nicobar Islands",
	"36": "Telangana",
	"37": "Andhra Pradesh",
	"38": "Ladakh",
}

var stateAbbreviations = map[string]string{
	"AP": "Andhra Pradesh",
	"AR": "Arunachal Pradesh",
	"AS": "Assam",
	"BR": "Bihar",
	"CG": "Chhattisgarh",
	"CT": "Chhattisgarh",
	"GA": "Goa",
	"GJ": "Gujarat",
	"HR": "Haryana",
	"HP": "Himachal Pradesh",
	"JH": "Jharkhand",
	"KA": "Karnataka",
	"KL": "Kerala",
	"MP": "Madhya Pradesh",
	"MH": "Maharashtra",
	"MN": "Manipur",
	"ML": "Meghalaya",
	"MZ": "Mizoram",
	"NL": "Nagaland",
	"OD": "Odisha",
	"OR": "Odisha",
	"PB": "Punjab",
	"RJ": "Rajasthan",
	"SK": "Sikkim",
	"TN": "Tamil Nadu",
	"TG": "Telangana",
	"TS": "Telangana",
	"TR": "Tripura",
	"UP": "Uttar Pradesh",
	"UK": "Uttarakhand",
	"UT": "Uttarakhand",
	"WB": "West Bengal",
	"DL": "Delhi",
	"JK": "Jammu and Kashmir",
	"LA": "Ladakh",
	"PY": "Puducherry",
	"CH": "Chandigarh",
	"DD": "Daman and Diu",
	"DN": "Dadra and Nagar Haveli",
	"LD": "Lakshadweep",
	"AN": "Andaman and Nicobar Islands",
}

var stateSynonyms = map[string]string{
	"new delhi":     "Delhi",
	"nct of delhi":  "Delhi",
	"orissa":        "Odisha",
	"pondicherry":   "Puducherry",
	"uttaranchal":   "Uttarakhand",
	"j&k":           "Jammu and Kashmir",
	"jammu kashmir": "Jammu and Kashmir",
	"andaman":       "Andaman and Nicobar Islands",
	"daman":         "Daman and Diu",
}

// CanonicalState resolves a state name, abbreviation, or common synonym to
// its canonical Indian state name.
func CanonicalState(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	if name, ok := stateAbbreviations[strings.ToUpper(s)]; ok {
		return name, true
	}
	lower := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if name, ok := stateSynonyms[lower]; ok {
		return name, true
	}
	for _, name := range GSTStateCodes {
		if lower == strings.ToLower(name) {
			return name, true
		}
	}
	return "", false
}

// FindState returns a canonical state name mentioned in free text.
// The longest matching name wins so "Andhra Pradesh" beats shorter fragments.
func FindState(text string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '&'
	})
	padded := " " + strings.Join(words, " ") + " "
	best := ""
	for _, name := range GSTStateCodes {
		if !strings.Contains(padded, " "+strings.ToLower(name)+" ") {
			continue
		}
		if len(name) > len(best) || (len(name) == len(best) && name < best) {
			best = name
		}
	}
	return best, best != ""
}
