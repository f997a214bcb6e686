package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLine(t *testing.T) {
	cases := map[string]string{
		"  lNVOICE   #12345 ":        "INVOICE #12345",
		"GSTlN: 22aaaaa0000a1z5":     "GSTIN: 22AAAAA0000A1Z5",
		"-------":                    "",
		"Ｔｏｔａｌ\t1,180.00":            "Total 1,180.00",
		"SUBT0TAL 1000":              "SUBTOTAL 1000",
		"Bill To: Acme Traders Pvt.": "Bill To: Acme Traders Pvt.",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLine(in), in)
	}
}

func TestNormalize(t *testing.T) {
	in := "INV0ICE\r\n\r\n\r\n\r\nTotal   100\n"
	assert.Equal(t, "INVOICE\n\nTotal 100", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}
