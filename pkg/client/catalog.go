package client

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/types"
)

// Listing is a supported asset with its market price
type Listing struct {
	Asset    types.Asset
	PriceUSD decimal.NullDecimal
}

// Catalog is the set of assets the treasury can exchange
type Catalog struct {
	Listings []Listing
}

// ListAssets fetches the token list and maps it to assets. NEAR tokens are
// chain-resident; everything else is held through the intents contract. The
// native currency is added using the wrapped token's price.
func (c *OneClickClient) ListAssets(ctx context.Context) (*Catalog, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(tokens)+1)
	for _, token := range tokens {
		listings = append(listings, newListing(
			token.GetAssetId(),
			token.GetContractAddress(),
			token.GetBlockchain(),
			token.GetSymbol(),
			int32(token.GetDecimals()),
			float64(token.GetPrice()),
		))
	}

	return NewCatalog(listings, c.wrapContract), nil
}

// NewCatalog builds a catalog and synthesises the native asset from the
// wrapped token listing when present.
func NewCatalog(listings []Listing, wrapContract string) *Catalog {
	native := Listing{Asset: types.NativeAsset()}
	for _, l := range listings {
		if l.Asset.Network == types.NearNetwork && l.Asset.Address == wrapContract {
			native.PriceUSD = l.PriceUSD
			break
		}
	}

	all := append([]Listing{native}, listings...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Asset.Network != all[j].Asset.Network {
			return all[i].Asset.Network < all[j].Asset.Network
		}
		return all[i].Asset.Symbol < all[j].Asset.Symbol
	})

	return &Catalog{Listings: all}
}

func newListing(assetID, contract, blockchain, symbol string, decimals int32, price float64) Listing {
	chain := strings.ToLower(blockchain)
	asset := types.Asset{
		Symbol:   symbol,
		Name:     symbol,
		Decimals: decimals,
		Network:  chain,
	}

	if chain == types.NearNetwork {
		asset.Residency = types.ResidencyChain
		asset.Address = contract
		if asset.Address == "" {
			asset.Address = strings.TrimPrefix(assetID, "nep141:")
		}
	} else {
		asset.Residency = types.ResidencyIntents
		asset.Address = assetID
	}

	listing := Listing{Asset: asset}
	if price > 0 {
		listing.PriceUSD = decimal.NullDecimal{Decimal: decimal.NewFromFloat(price), Valid: true}
	}
	return listing
}

// Find resolves a symbol to an asset. network narrows the search; intents
// selects the intents-held variant of a NEAR token.
func (c *Catalog) Find(symbol, network string, intents bool) (types.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	network = strings.ToLower(strings.TrimSpace(network))

	var matches []types.Asset
	for _, l := range c.Listings {
		if strings.ToUpper(l.Asset.Symbol) != symbol {
			continue
		}
		if network != "" && l.Asset.Network != network {
			continue
		}
		matches = append(matches, l.Asset)
	}

	if len(matches) == 0 {
		if network != "" {
			return types.Asset{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, network)
		}
		return types.Asset{}, fmt.Errorf("token '%s' not found", symbol)
	}

	// Prefer the treasury's home chain when the symbol exists on several
	chosen := matches[0]
	for _, m := range matches {
		if m.Network == types.NearNetwork {
			chosen = m
			break
		}
	}

	if intents && chosen.Residency == types.ResidencyChain {
		if chosen.Kind() == types.KindNative {
			return types.Asset{}, fmt.Errorf("native %s cannot be held in intents, use the wrapped token", chosen.Symbol)
		}
		chosen.Residency = types.ResidencyIntents
		chosen.Address = "nep141:" + chosen.Address
	}

	return chosen, nil
}

// Filter returns listings matching chain and a symbol substring
func (c *Catalog) Filter(chain, symbol string) []Listing {
	chain = strings.ToLower(chain)
	symbol = strings.ToUpper(symbol)

	var out []Listing
	for _, l := range c.Listings {
		if chain != "" && l.Asset.Network != chain {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(l.Asset.Symbol), symbol) {
			continue
		}
		out = append(out, l)
	}
	return out
}
