package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// NearNetwork is the network identifier of the treasury's home chain
	NearNetwork = "near"
	// NativeAddress identifies the chain's native currency
	NativeAddress = "near"
	// NativeDecimals is the precision of the native currency (yoctoNEAR)
	NativeDecimals = 24
)

// Residency tells where an asset is held
type Residency string

const (
	ResidencyChain   Residency = "chain"   // Held directly on the chain
	ResidencyIntents Residency = "intents" // Held in the intents custody contract
)

// AssetKind selects the proposal shape used to move an asset
type AssetKind int

const (
	KindNative AssetKind = iota
	KindFungible
	KindIntents
)

func (k AssetKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindFungible:
		return "fungible"
	case KindIntents:
		return "intents"
	default:
		return "unknown"
	}
}

// Asset is a tradable unit selected in an exchange
type Asset struct {
	Address   string    `json:"address"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name,omitempty"`
	Decimals  int32     `json:"decimals"`
	Network   string    `json:"network"`
	Residency Residency `json:"residency"`
	Icon      string    `json:"icon,omitempty"`
	ChainIcon string    `json:"chain_icon,omitempty"`
}

// NativeAsset returns the chain's native currency
func NativeAsset() Asset {
	return Asset{
		Address:   NativeAddress,
		Symbol:    "NEAR",
		Name:      "NEAR",
		Decimals:  NativeDecimals,
		Network:   NearNetwork,
		Residency: ResidencyChain,
	}
}

// Same reports whether both assets share address and network
func (a Asset) Same(b Asset) bool {
	return a.Address == b.Address && a.Network == b.Network
}

// IsZero returns true if no asset has been selected
func (a Asset) IsZero() bool {
	return a.Address == "" && a.Network == ""
}

// Kind classifies the asset for proposal building
func (a Asset) Kind() AssetKind {
	if a.Residency == ResidencyIntents {
		return KindIntents
	}
	if a.Address == NativeAddress && a.Network == NearNetwork {
		return KindNative
	}
	return KindFungible
}

// Key returns a stable identity string for maps and cache keys
func (a Asset) Key() string {
	return strings.ToLower(a.Network) + ":" + a.Address
}

// TokenRef names a token the way a user types it
type TokenRef struct {
	Symbol  string
	Network string // Empty means any, preferring the home chain
	Intents bool   // The intents-held variant of a home-chain token
}

// ExchangeRequest represents a parsed exchange command
type ExchangeRequest struct {
	Amount      string
	Source      TokenRef
	Destination TokenRef
}

// QuoteParams is everything the quote fetcher needs for one request
type QuoteParams struct {
	Source          Asset
	Destination     Asset
	Amount          string          // Decimal amount of Source
	SlippagePercent decimal.Decimal // Percent, converted to basis points on the wire
	TreasuryAccount string
	Dry             bool
}

// Quote is a priced, time-bounded offer returned by the swap service
type Quote struct {
	AmountIn           string    `json:"amount_in"`
	AmountInFormatted  string    `json:"amount_in_formatted"`
	AmountInUSD        string    `json:"amount_in_usd"`
	AmountOut          string    `json:"amount_out"`
	AmountOutFormatted string    `json:"amount_out_formatted"`
	AmountOutUSD       string    `json:"amount_out_usd"`
	MinAmountOut       string    `json:"min_amount_out"`
	DepositAddress     string    `json:"deposit_address,omitempty"`
	TimeEstimate       int64     `json:"time_estimate"` // Seconds
	Deadline           time.Time `json:"deadline"`
	Signature          string    `json:"signature"`
	Dry                bool      `json:"dry"`
}

// Expired returns true once the quote deadline has passed
func (q *Quote) Expired(now time.Time) bool {
	return !q.Deadline.IsZero() && !now.Before(q.Deadline)
}

// Committed returns true for a binding (non dry-run) quote with a deposit address
func (q *Quote) Committed() bool {
	return q != nil && !q.Dry && q.DepositAddress != ""
}
