// Package pricing supplies independent market USD prices for the deviation
// check, taken from the 1Click token list.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/client"
	"treasury-exchange/pkg/rate"
	"treasury-exchange/pkg/types"
)

const DefaultTTL = 60 * time.Second

// CatalogSource loads the asset catalogue
type CatalogSource interface {
	ListAssets(ctx context.Context) (*client.Catalog, error)
}

// MarketPrices is a snapshot of USD prices keyed by asset
type MarketPrices struct {
	prices    map[string]decimal.Decimal
	fetchedAt time.Time
}

// FromCatalog indexes the priced listings of a catalogue
func FromCatalog(c *client.Catalog, fetchedAt time.Time) *MarketPrices {
	m := &MarketPrices{
		prices:    make(map[string]decimal.Decimal, len(c.Listings)),
		fetchedAt: fetchedAt,
	}
	for _, l := range c.Listings {
		if l.PriceUSD.Valid && l.PriceUSD.Decimal.IsPositive() {
			m.prices[l.Asset.Key()] = l.PriceUSD.Decimal
		}
	}
	return m
}

// PriceOf returns the market price of a, if known. Intents-held NEAR tokens
// share the price of their on-chain counterpart.
func (m *MarketPrices) PriceOf(a types.Asset) decimal.NullDecimal {
	if m == nil {
		return decimal.NullDecimal{}
	}
	if p, ok := m.prices[a.Key()]; ok {
		return decimal.NullDecimal{Decimal: p, Valid: true}
	}
	if a.Residency == types.ResidencyIntents && a.Network == types.NearNetwork {
		onChain := a
		onChain.Residency = types.ResidencyChain
		onChain.Address = trimStandard(a.Address)
		if p, ok := m.prices[onChain.Key()]; ok {
			return decimal.NullDecimal{Decimal: p, Valid: true}
		}
	}
	return decimal.NullDecimal{}
}

// FetchedAt returns when the snapshot was taken
func (m *MarketPrices) FetchedAt() time.Time {
	return m.fetchedAt
}

// Deviation compares a quote against market prices
func (m *MarketPrices) Deviation(q *types.Quote, source, destination types.Asset) (rate.Deviation, bool) {
	if q == nil {
		return rate.Deviation{}, false
	}
	pair := rate.FromQuote(q, source, destination)
	return rate.MarketDeviation(pair.Out, m.PriceOf(source), m.PriceOf(destination))
}

func trimStandard(id string) string {
	for _, prefix := range []string{"nep141:", "nep245:"} {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return id
}

// Pricer caches market prices for a TTL
type Pricer struct {
	source CatalogSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current *MarketPrices
}

// NewPricer creates a new pricer instance
func NewPricer(source CatalogSource, ttl time.Duration) *Pricer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Pricer{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Prices returns a cached snapshot or loads a fresh one
func (p *Pricer) Prices(ctx context.Context) (*MarketPrices, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.current != nil && now.Sub(p.current.fetchedAt) < p.ttl {
		return p.current, nil
	}

	catalog, err := p.source.ListAssets(ctx)
	if err != nil {
		if p.current != nil {
			// Best effort: serve the stale snapshot rather than nothing
			return p.current, nil
		}
		return nil, fmt.Errorf("failed to load market prices: %w", err)
	}

	p.current = FromCatalog(catalog, now)
	return p.current, nil
}
