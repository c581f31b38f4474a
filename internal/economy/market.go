// Package economy provides the currency ledger, the cost tables, and
// the global resource market.
package economy

import (
	"math"
	"sync"

	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/world"
)

// Quote is the market state for one resource.
type Quote struct {
	Resource  world.Resource `json:"resource"`
	Price     float64        `json:"price"`
	BasePrice float64        `json:"base_price"`
	// Percent change on the last walk, for snapshot display.
	Change float64 `json:"change"`
}

// Market holds the world-wide resource prices. Prices drift on a
// bounded random walk; there is no per-settlement order book.
type Market struct {
	mu     sync.RWMutex
	quotes map[world.Resource]*Quote
}

// Base prices per unit.
var basePrices = map[world.Resource]float64{
	world.ResourceCrystal: 20,
	world.ResourceGold:    12,
	world.ResourceIron:    6,
	world.ResourceStone:   4,
	world.ResourceWood:    2.5,
	world.ResourceFood:    1.5,
}

// priceFloor keeps a crashed resource worth something.
const priceFloor = 0.5

// NewMarket creates a market at base prices.
func NewMarket() *Market {
	m := &Market{quotes: make(map[world.Resource]*Quote, len(basePrices))}
	for res, base := range basePrices {
		m.quotes[res] = &Quote{Resource: res, Price: base, BasePrice: base}
	}
	return m
}

// Walk drifts every price one step. The step is biased very slightly
// upward so a long-run market trends with world wealth.
func (m *Market) Walk(dice *entropy.Dice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Fixed resource order keeps the walk reproducible per seed.
	for _, res := range world.AllResources {
		q := m.quotes[res]
		if q == nil {
			continue
		}
		old := q.Price
		next := old + (dice.Float()-0.48)*1.5
		if next < priceFloor {
			next = priceFloor
		}
		q.Price = next
		if old > 0 {
			q.Change = (next - old) / old * 100
		}
	}
}

// Price returns the current unit price for a resource.
func (m *Market) Price(res world.Resource) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.quotes[res]; ok {
		return q.Price
	}
	return 0
}

// SetPrice restores a persisted price.
func (m *Market) SetPrice(res world.Resource, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.quotes[res]; ok && price > 0 {
		q.Price = price
	}
}

// SaleValue returns what selling amount units fetches, floored to whole
// currency.
func (m *Market) SaleValue(res world.Resource, amount int) int {
	return int(math.Floor(m.Price(res) * float64(amount)))
}

// InventoryValue prices an inventory at current quotes.
func (m *Market) InventoryValue(inv [7]int) int {
	total := 0.0
	m.mu.RLock()
	for res, q := range m.quotes {
		total += q.Price * float64(inv[res])
	}
	m.mu.RUnlock()
	return int(math.Floor(total))
}

// Quotes returns a snapshot of all quotes in stable resource order.
func (m *Market) Quotes() []Quote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Quote, 0, len(m.quotes))
	for _, res := range world.AllResources {
		if q, ok := m.quotes[res]; ok {
			out = append(out, *q)
		}
	}
	return out
}
