package client

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-exchange/pkg/types"
)

func sampleCatalog() *Catalog {
	return NewCatalog([]Listing{
		newListing("nep141:wrap.near", "wrap.near", "near", "wNEAR", 24, 3.1),
		newListing("nep141:usdt.tether-token.near", "usdt.tether-token.near", "near", "USDT", 6, 1),
		newListing("nep141:eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near", "0xdac17f958d2ee523a2206206994597c13d831ec7", "eth", "USDT", 6, 0.999),
		newListing("nep141:btc.omft.near", "", "btc", "BTC", 8, 0),
	}, "wrap.near")
}

func TestNewListingResidency(t *testing.T) {
	near := newListing("nep141:usdt.tether-token.near", "", "NEAR", "USDT", 6, 1)
	assert.Equal(t, types.ResidencyChain, near.Asset.Residency)
	assert.Equal(t, "usdt.tether-token.near", near.Asset.Address)
	assert.Equal(t, types.KindFungible, near.Asset.Kind())
	assert.True(t, near.PriceUSD.Valid)

	btc := newListing("nep141:btc.omft.near", "", "btc", "BTC", 8, 0)
	assert.Equal(t, types.ResidencyIntents, btc.Asset.Residency)
	assert.Equal(t, "nep141:btc.omft.near", btc.Asset.Address)
	assert.Equal(t, types.KindIntents, btc.Asset.Kind())
	assert.False(t, btc.PriceUSD.Valid)
}

func TestCatalogSynthesisesNative(t *testing.T) {
	c := sampleCatalog()

	native, err := c.Find("near", "", false)
	require.NoError(t, err)
	assert.Equal(t, types.KindNative, native.Kind())

	for _, l := range c.Listings {
		if l.Asset.Kind() == types.KindNative {
			require.True(t, l.PriceUSD.Valid)
			assert.True(t, l.PriceUSD.Decimal.Equal(decimal.RequireFromString("3.1")))
		}
	}
}

func TestCatalogFindPrefersHomeChain(t *testing.T) {
	c := sampleCatalog()

	usdt, err := c.Find("usdt", "", false)
	require.NoError(t, err)
	assert.Equal(t, "near", usdt.Network)
	assert.Equal(t, types.ResidencyChain, usdt.Residency)

	eth, err := c.Find("USDT", "eth", false)
	require.NoError(t, err)
	assert.Equal(t, types.ResidencyIntents, eth.Residency)

	held, err := c.Find("USDT", "near", true)
	require.NoError(t, err)
	assert.Equal(t, types.ResidencyIntents, held.Residency)
	assert.Equal(t, "nep141:usdt.tether-token.near", held.Address)

	_, err = c.Find("NEAR", "", true)
	assert.Error(t, err)

	_, err = c.Find("DOGE", "", false)
	assert.Error(t, err)
}

func TestCatalogFilter(t *testing.T) {
	c := sampleCatalog()

	assert.Len(t, c.Filter("near", ""), 3)
	assert.Len(t, c.Filter("", "usd"), 2)
	assert.Len(t, c.Filter("btc", "BTC"), 1)
}
