package currency

import (
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// DefaultDegradedDivisor converts B into A when no live rate is available.
const DefaultDegradedDivisor = 1000

// Rate is the price of one B in A implied by pool reserves; zero when the B reserve is empty.
func Rate(reserveA, reserveB decimal.Decimal) decimal.Decimal {
	if !reserveB.IsPositive() {
		return decimal.Zero
	}
	return reserveA.Div(reserveB)
}

// Converter expresses B-denominated amounts in A so prices in either currency compare.
type Converter struct {
	divisor decimal.Decimal
}

// NewConverter creates a converter using divisor in degraded mode. Non-positive values fall back to the default.
func NewConverter(divisor decimal.Decimal) *Converter {
	if !divisor.IsPositive() {
		divisor = decimal.NewFromInt(DefaultDegradedDivisor)
	}
	return &Converter{divisor: divisor}
}

// Divisor returns the degraded-mode divisor.
func (c *Converter) Divisor() decimal.Decimal {
	return c.divisor
}

// ToEquivalentA converts amountB at rate, or by the degraded divisor when rate is zero.
func (c *Converter) ToEquivalentA(amountB, rate decimal.Decimal) decimal.Decimal {
	if rate.IsPositive() {
		return amountB.Mul(rate)
	}
	return amountB.Div(c.divisor)
}

// Quote returns the comparable price of a two-currency listing. When both legs are set the cheaper one wins,
// A on a tie. A listing priced zero in both currencies yields an invalid quote.
func (c *Converter) Quote(priceA, priceB, rate decimal.Decimal) domain.PriceQuote {
	hasA, hasB := priceA.IsPositive(), priceB.IsPositive()

	quoteA := func() domain.PriceQuote {
		return domain.PriceQuote{
			SourceCurrency: domain.CurrencyA,
			Amount:         priceA,
			EquivalentA:    priceA,
			Display:        DisplayA(priceA),
			Valid:          true,
		}
	}
	quoteB := func(equivalent decimal.Decimal) domain.PriceQuote {
		return domain.PriceQuote{
			SourceCurrency: domain.CurrencyB,
			Amount:         priceB,
			EquivalentA:    equivalent,
			Display:        DisplayB(priceB),
			Valid:          true,
		}
	}

	switch {
	case hasA && hasB:
		equivalent := c.ToEquivalentA(priceB, rate)
		if priceA.LessThanOrEqual(equivalent) {
			return quoteA()
		}
		return quoteB(equivalent)
	case hasA:
		return quoteA()
	case hasB:
		return quoteB(c.ToEquivalentA(priceB, rate))
	default:
		return domain.PriceQuote{}
	}
}

// Sum totals a two-currency volume in A, converting the B leg first.
func (c *Converter) Sum(legA, legB, rate decimal.Decimal) decimal.Decimal {
	return legA.Add(c.ToEquivalentA(legB, rate))
}

// DisplayA renders an A amount with two decimals, e.g. "12.50 SGB".
func DisplayA(amount decimal.Decimal) string {
	return domain.FormatFixed(amount, 2) + " " + string(domain.CurrencyA)
}

// DisplayB renders a B amount in compact notation, e.g. "50.0K POND".
func DisplayB(amount decimal.Decimal) string {
	return domain.FormatCompact(amount) + " " + string(domain.CurrencyB)
}
