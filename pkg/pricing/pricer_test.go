package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-exchange/pkg/client"
	"treasury-exchange/pkg/types"
)

var (
	usdc = types.Asset{Address: "usdc.near", Symbol: "USDC", Decimals: 6, Network: "near", Residency: types.ResidencyChain}
	btc  = types.Asset{Address: "nep141:btc.omft.near", Symbol: "BTC", Decimals: 8, Network: "btc", Residency: types.ResidencyIntents}
)

func priced(a types.Asset, p string) client.Listing {
	return client.Listing{Asset: a, PriceUSD: decimal.NullDecimal{Decimal: decimal.RequireFromString(p), Valid: true}}
}

type fakeSource struct {
	catalog *client.Catalog
	err     error
	calls   int
}

func (f *fakeSource) ListAssets(context.Context) (*client.Catalog, error) {
	f.calls++
	return f.catalog, f.err
}

func TestPriceOf(t *testing.T) {
	m := FromCatalog(&client.Catalog{Listings: []client.Listing{
		priced(usdc, "1.0001"),
		{Asset: btc},
	}}, time.Now())

	p := m.PriceOf(usdc)
	require.True(t, p.Valid)
	assert.True(t, p.Decimal.Equal(decimal.RequireFromString("1.0001")))

	assert.False(t, m.PriceOf(btc).Valid)

	held := usdc
	held.Residency = types.ResidencyIntents
	held.Address = "nep141:usdc.near"
	assert.True(t, m.PriceOf(held).Valid)

	var empty *MarketPrices
	assert.False(t, empty.PriceOf(usdc).Valid)
}

func TestDeviationRequiresBothPrices(t *testing.T) {
	m := FromCatalog(&client.Catalog{Listings: []client.Listing{
		priced(types.NativeAsset(), "3"),
		priced(usdc, "1"),
	}}, time.Now())

	q := &types.Quote{
		AmountIn:     "1000000000000000000000000",
		AmountOut:    "2900000",
		AmountOutUSD: "2.9",
	}

	d, ok := m.Deviation(q, types.NativeAsset(), usdc)
	require.True(t, ok)
	assert.True(t, d.Percent.IsZero())

	_, ok = m.Deviation(q, btc, usdc)
	assert.False(t, ok)

	_, ok = m.Deviation(nil, types.NativeAsset(), usdc)
	assert.False(t, ok)
}

func TestPricerCachesAndFallsBack(t *testing.T) {
	src := &fakeSource{catalog: &client.Catalog{Listings: []client.Listing{priced(usdc, "1")}}}
	p := NewPricer(src, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	first, err := p.Prices(context.Background())
	require.NoError(t, err)
	_, err = p.Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	src.err = errors.New("network down")
	stale, err := p.Prices(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, stale)
	assert.Equal(t, 2, src.calls)
}

func TestPricerFailsWithoutSnapshot(t *testing.T) {
	p := NewPricer(&fakeSource{err: errors.New("boom")}, 0)
	_, err := p.Prices(context.Background())
	assert.Error(t, err)
}
