package domain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// tokenDecimals is the precision of both settlement currencies on-chain.
const tokenDecimals = 18

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromWei converts an 18-decimal on-chain integer into a token amount. Nil is zero.
func FromWei(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -tokenDecimals)
}

// ToWei converts a token amount into its 18-decimal on-chain integer.
func ToWei(d decimal.Decimal) *big.Int {
	return d.Shift(tokenDecimals).Truncate(0).BigInt()
}

// FormatFixed rounds to the given places, always printing them (e.g. "12.50").
func FormatFixed(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// FormatCompact renders large amounts as 1.2K / 3.45M and trims trailing zeros otherwise.
func FormatCompact(d decimal.Decimal) string {
	million := decimal.NewFromInt(1_000_000)
	thousand := decimal.NewFromInt(1_000)

	switch {
	case d.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case d.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "K"
	}

	s := d.Round(3).StringFixed(3)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
