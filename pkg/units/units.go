// Package units converts between human decimal amounts and on-chain integer
// amounts without going through floating point.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/feedback"
)

var (
	hundred     = decimal.NewFromInt(100)
	minSlippage = decimal.RequireFromString("0.01")
)

// ParseAmount parses a decimal amount string
func ParseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, feedback.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", feedback.ErrInvalidAmount, amount)
	}
	return d, nil
}

// ParsePositive parses a decimal amount and requires it to be greater than zero
func ParsePositive(amount string) (decimal.Decimal, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, feedback.ErrNonPositiveAmount
	}
	return d, nil
}

// ToSmallestUnits converts a decimal amount into an integer string of the
// asset's smallest unit. Digits beyond the precision are truncated.
func ToSmallestUnits(amount string, decimals int32) (string, error) {
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals: %d", decimals)
	}
	d, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	if d.IsNegative() {
		return "", feedback.ErrNonPositiveAmount
	}
	return d.Shift(decimals).Truncate(0).String(), nil
}

// FromSmallestUnits converts an integer amount back into a decimal string
func FromSmallestUnits(raw string, decimals int32) (string, error) {
	d, err := DisplayAmount(raw, decimals)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// DisplayAmount returns raw / 10^decimals
func DisplayAmount(raw string, decimals int32) (decimal.Decimal, error) {
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("invalid decimals: %d", decimals)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid integer amount %q: %w", raw, err)
	}
	return d.Shift(-decimals), nil
}

// ValidateSlippage accepts zero (unset) or a percent within [0.01, 100]
func ValidateSlippage(percent decimal.Decimal) error {
	if percent.IsZero() {
		return nil
	}
	if percent.LessThan(minSlippage) || percent.GreaterThan(hundred) {
		return feedback.ErrSlippageOutOfRange
	}
	return nil
}

// SlippageBasisPoints converts a percent into rounded basis points
func SlippageBasisPoints(percent decimal.Decimal) int64 {
	bps := percent.Mul(hundred).Round(0).IntPart()
	if bps < 0 {
		return 0
	}
	return bps
}
