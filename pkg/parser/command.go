package parser

import (
	"fmt"
	"regexp"
	"strings"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/lifecycle"
	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

var (
	// <amount> <token> TO <token>
	commandPattern = regexp.MustCompile(`^(\S+)\s+(\S+)\s+TO\s+(\S+)$`)
	// [INTENTS:]<symbol>[@<chain>]
	tokenPattern = regexp.MustCompile(`^(INTENTS:)?([A-Z0-9._-]+)(?:@([A-Z0-9_-]+))?$`)
)

// ParseExchangeCommand parses an exchange command
// Examples:
//   - "2.5 NEAR to USDC"
//   - "exchange 100 USDT to intents:USDC"
//   - "10 USDC@eth to NEAR"
func ParseExchangeCommand(command string) (*types.ExchangeRequest, error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "EXCHANGE ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := commandPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid exchange command format. Expected: '<amount> <token> to <token>' (e.g., '2.5 NEAR to USDC')")
	}

	source, err := parseToken(matches[2])
	if err != nil {
		return nil, feedback.Input(lifecycle.FieldSource, err)
	}
	dest, err := parseToken(matches[3])
	if err != nil {
		return nil, feedback.Input(lifecycle.FieldDestination, err)
	}

	req := &types.ExchangeRequest{
		Amount:      matches[1],
		Source:      source,
		Destination: dest,
	}
	if err := ValidateExchangeRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

func parseToken(s string) (types.TokenRef, error) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		return types.TokenRef{}, fmt.Errorf("invalid token %q", s)
	}
	return types.TokenRef{
		Symbol:  NormalizeTokenSymbol(m[2]),
		Network: strings.ToLower(m[3]),
		Intents: m[1] != "",
	}, nil
}

// ValidateExchangeRequest checks what can be checked before the catalogue is
// consulted
func ValidateExchangeRequest(req *types.ExchangeRequest) error {
	if _, err := units.ParsePositive(req.Amount); err != nil {
		return feedback.Input(lifecycle.FieldAmount, err)
	}
	if req.Source.Symbol == "" {
		return feedback.Input(lifecycle.FieldSource, feedback.ErrMissingAsset)
	}
	if req.Destination.Symbol == "" {
		return feedback.Input(lifecycle.FieldDestination, feedback.ErrMissingAsset)
	}
	if req.Source == req.Destination {
		return feedback.Input(lifecycle.FieldDestination, feedback.ErrSameAsset)
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"USDT.E": "USDT",
		"WBTC":   "BTC",
		"WETH":   "ETH",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
