package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Test_Discount(t *testing.T) {
	testCases := []struct {
		name     string
		price    string
		pct      string
		expected string
	}{
		{name: "ten percent of 1000", price: "1000.00", pct: "10", expected: "900.00"},
		{name: "ten percent of 500", price: "500.00", pct: "10", expected: "450.00"},
		{name: "ninety five percent of 5", price: "5.00", pct: "95", expected: "0.25"},
		{name: "drops sub-cent remainder", price: "9.99", pct: "15", expected: "8.49"},
		{name: "rounds up on the half cent", price: "0.05", pct: "10", expected: "0.05"},
		{name: "fractional percentage", price: "19.99", pct: "12.5", expected: "17.49"},
		{name: "keeps two decimals", price: "1.10", pct: "50", expected: "0.55"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			got := Discount(d(tc.price), d(tc.pct))
			// then
			assert.Equal(t, tc.expected, got.StringFixed(2))
			assert.LessOrEqual(t, -got.Exponent(), int32(2))
		})
	}
}

func Test_ValidDiscount(t *testing.T) {
	testCases := []struct {
		pct      string
		expected bool
	}{
		{"0", false},
		{"-5", false},
		{"0.01", true},
		{"50", true},
		{"99.99", true},
		{"100", false},
		{"150", false},
	}
	for _, tc := range testCases {
		t.Run(tc.pct, func(t *testing.T) {
			assert.Equal(t, tc.expected, ValidDiscount(d(tc.pct)))
		})
	}
}

func Test_BelowMinimum(t *testing.T) {
	assert.True(t, BelowMinimum(d("0.99")))
	assert.True(t, BelowMinimum(d("0")))
	assert.False(t, BelowMinimum(d("1.00")))
	assert.False(t, BelowMinimum(d("1")))
	assert.False(t, BelowMinimum(d("1.01")))
}

func Test_Format(t *testing.T) {
	assert.Equal(t, "1,00 €", Format(Minimum))
	assert.Equal(t, "19,99 €", Format(d("19.99")))
	assert.Equal(t, "9,50 €", Format(d("9.5")))
}
