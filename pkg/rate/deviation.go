package rate

import (
	"github.com/shopspring/decimal"
)

// NoMarketData is shown when market prices are unavailable
const NoMarketData = "no market data"

// Deviation compares the quoted receive value with the market expectation.
// Positive means the quote gives more than the market price implies.
type Deviation struct {
	Percent          decimal.Decimal
	ExpectedUSD      decimal.Decimal
	ActualReceiveUSD decimal.Decimal
}

// Detailed renders the deviation with four decimals
func (d Deviation) Detailed() string {
	return signed(d.Percent.Round(4).StringFixed(4)) + "%"
}

// Compact renders the deviation with two decimals
func (d Deviation) Compact() string {
	return signed(d.Percent.Round(2).StringFixed(2)) + "%"
}

// Favorable is true when the quote is at or above the market expectation
func (d Deviation) Favorable() bool {
	return !d.Percent.IsNegative()
}

func signed(s string) string {
	if len(s) > 0 && s[0] != '-' {
		return "+" + s
	}
	return s
}

// MarketDeviation computes the deviation of the received leg against market
// prices. Both prices are required; when either is missing, or the received
// USD value is unknown, ok is false and no figure is guessed.
func MarketDeviation(out Leg, sourcePrice, destPrice decimal.NullDecimal) (d Deviation, ok bool) {
	if !sourcePrice.Valid || !destPrice.Valid {
		return Deviation{}, false
	}
	if !sourcePrice.Decimal.IsPositive() || !destPrice.Decimal.IsPositive() {
		return Deviation{}, false
	}

	received, err := out.Display()
	if err != nil {
		return Deviation{}, false
	}
	actual, err := decimal.NewFromString(out.USD)
	if err != nil {
		return Deviation{}, false
	}

	expected := received.Mul(destPrice.Decimal)
	if !expected.IsPositive() {
		return Deviation{}, false
	}

	return Deviation{
		Percent:          actual.Sub(expected).Div(expected).Mul(hundred),
		ExpectedUSD:      expected,
		ActualReceiveUSD: actual,
	}, true
}
