package oracle

import (
	"errors"
	"fmt"
	"math/big"

	"ArcVault/internal/fixedpoint"
)

var ErrNoPrice = errors.New("no price observed for market")

// PriceSource supplies the 18-decimal collateral price, denominated in the
// borrowed asset, for a market.
type PriceSource interface {
	CurrentPrice(marketID string) (*big.Int, error)
}

// MarketPrice is the latest observed price state for one market.
type MarketPrice struct {
	Price         *big.Int
	PriceSequence int64
	Timestamp     int64
}

// Cache is an event-fed PriceSource: prices arrive as ordered feed events and
// actions read the most recent one. Price sequences tolerate gaps; stale
// sequences are dropped.
// Not thread-safe — only accessed from the single-threaded action engine.
type Cache struct {
	prices map[string]MarketPrice
}

func NewCache() *Cache {
	return &Cache{
		prices: make(map[string]MarketPrice),
	}
}

// Observe records a price update. Returns false for stale or invalid updates,
// which are silently skipped by the engine (idempotent redelivery).
func (c *Cache) Observe(marketID string, price *big.Int, priceSequence, timestamp int64) bool {
	if price == nil || price.Sign() <= 0 {
		return false
	}
	if cur, ok := c.prices[marketID]; ok && priceSequence <= cur.PriceSequence {
		return false
	}
	c.prices[marketID] = MarketPrice{
		Price:         fixedpoint.Clone(price),
		PriceSequence: priceSequence,
		Timestamp:     timestamp,
	}
	return true
}

// CurrentPrice implements PriceSource.
func (c *Cache) CurrentPrice(marketID string) (*big.Int, error) {
	cur, ok := c.prices[marketID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, marketID)
	}
	return fixedpoint.Clone(cur.Price), nil
}

// Latest returns the full price state for snapshots and queries.
func (c *Cache) Latest(marketID string) (MarketPrice, bool) {
	cur, ok := c.prices[marketID]
	return cur, ok
}

// Snapshot copies all price states.
func (c *Cache) Snapshot() map[string]MarketPrice {
	out := make(map[string]MarketPrice, len(c.prices))
	for k, v := range c.prices {
		out[k] = MarketPrice{
			Price:         fixedpoint.Clone(v.Price),
			PriceSequence: v.PriceSequence,
			Timestamp:     v.Timestamp,
		}
	}
	return out
}

// Restore rehydrates the cache from a snapshot.
func (c *Cache) Restore(prices map[string]MarketPrice) {
	c.prices = make(map[string]MarketPrice, len(prices))
	for k, v := range prices {
		c.prices[k] = MarketPrice{
			Price:         fixedpoint.Clone(v.Price),
			PriceSequence: v.PriceSequence,
			Timestamp:     v.Timestamp,
		}
	}
}
