// Package rate derives the figures shown next to a quote: the exchange rate,
// the minimum received and the deviation from market prices. All arithmetic
// is done on decimals.
package rate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

// NotAvailable is shown when a figure cannot be computed
const NotAvailable = "N/A"

var (
	hundred  = decimal.NewFromInt(100)
	smallest = decimal.RequireFromString("0.01")
)

// Leg is one side of a quote
type Leg struct {
	Symbol   string
	Raw      string // Integer amount in smallest units
	Decimals int32
	USD      string // USD value of the whole amount, may be empty
}

// Display returns the leg amount in whole units
func (l Leg) Display() (decimal.Decimal, error) {
	return units.DisplayAmount(l.Raw, l.Decimals)
}

// Pair is the input to the rate calculation
type Pair struct {
	In  Leg
	Out Leg
}

// FromQuote builds a pair from a quote and its assets
func FromQuote(q *types.Quote, source, destination types.Asset) Pair {
	return Pair{
		In: Leg{
			Symbol:   source.Symbol,
			Raw:      q.AmountIn,
			Decimals: source.Decimals,
			USD:      q.AmountInUSD,
		},
		Out: Leg{
			Symbol:   destination.Symbol,
			Raw:      q.AmountOut,
			Decimals: destination.Decimals,
			USD:      q.AmountOutUSD,
		},
	}
}

// Rate is "1 Base ≈ Price Counter"
type Rate struct {
	Base       string
	Counter    string
	Price      decimal.Decimal
	USDPerBase decimal.NullDecimal
}

func (r Rate) String() string {
	usd := ""
	if r.USDPerBase.Valid {
		usd = fmt.Sprintf(" ($%s)", r.USDPerBase.Decimal.StringFixed(2))
	}
	return fmt.Sprintf("1 %s%s ≈ %s %s", r.Base, usd, FormatPrice(r.Price), r.Counter)
}

// Compute returns the rate for the pair. reversed quotes the destination
// asset in units of the source asset. ok is false when either amount is not
// positive.
func Compute(p Pair, reversed bool) (r Rate, ok bool) {
	inAmount, err := p.In.Display()
	if err != nil || !inAmount.IsPositive() {
		return Rate{}, false
	}
	outAmount, err := p.Out.Display()
	if err != nil || !outAmount.IsPositive() {
		return Rate{}, false
	}

	base, counter := p.In, p.Out
	baseAmount, counterAmount := inAmount, outAmount
	if reversed {
		base, counter = p.Out, p.In
		baseAmount, counterAmount = outAmount, inAmount
	}

	r = Rate{
		Base:    base.Symbol,
		Counter: counter.Symbol,
		Price:   counterAmount.Div(baseAmount),
	}
	if usd, err := decimal.NewFromString(base.USD); err == nil && usd.IsPositive() {
		r.USDPerBase = decimal.NullDecimal{Decimal: usd.Div(baseAmount), Valid: true}
	}
	return r, true
}

// ExchangeRate formats the rate for display, or NotAvailable
func ExchangeRate(p Pair, reversed bool) string {
	r, ok := Compute(p, reversed)
	if !ok {
		return NotAvailable
	}
	return r.String()
}

// FormatPrice uses two decimals for ordinary prices and up to eight
// significant places for very small ones.
func FormatPrice(price decimal.Decimal) string {
	if price.Abs().LessThan(smallest) && !price.IsZero() {
		return price.Round(8).String()
	}
	return price.StringFixed(2)
}

// MinimumReceived formats the quote's slippage floor in destination units.
// The upstream value is authoritative and is not recomputed here.
func MinimumReceived(minAmountOut string, decimals int32) string {
	if minAmountOut == "" {
		return NotAvailable
	}
	s, err := units.FromSmallestUnits(minAmountOut, decimals)
	if err != nil {
		return NotAvailable
	}
	return s
}
