package economy

import (
	"testing"

	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/world"
)

func TestMarketStartsAtBasePrices(t *testing.T) {
	m := NewMarket()
	if got := m.Price(world.ResourceCrystal); got != 20 {
		t.Fatalf("crystal price = %v, want 20", got)
	}
	if got := m.Price(world.ResourceFood); got != 1.5 {
		t.Fatalf("food price = %v, want 1.5", got)
	}
	if got := m.Price(world.ResourceNone); got != 0 {
		t.Fatalf("unpriced resource = %v, want 0", got)
	}
}

func TestWalkRespectsPriceFloor(t *testing.T) {
	m := NewMarket()
	dice := entropy.New(99)

	for i := 0; i < 500; i++ {
		m.Walk(dice)
	}
	for _, q := range m.Quotes() {
		if q.Price < priceFloor {
			t.Fatalf("%s fell to %v, below the floor", q.Resource, q.Price)
		}
	}
}

func TestWalkMovesPrices(t *testing.T) {
	m := NewMarket()
	dice := entropy.New(1)

	before := m.Price(world.ResourceGold)
	m.Walk(dice)
	after := m.Price(world.ResourceGold)
	if before == after {
		t.Fatal("walk left the gold price unchanged")
	}
}

func TestWalkIsSeedDeterministic(t *testing.T) {
	a, b := NewMarket(), NewMarket()
	da, db := entropy.New(7), entropy.New(7)

	for i := 0; i < 50; i++ {
		a.Walk(da)
		b.Walk(db)
	}
	for _, res := range world.AllResources {
		if a.Price(res) != b.Price(res) {
			t.Fatalf("%v price diverged under the same seed: %v vs %v",
				res, a.Price(res), b.Price(res))
		}
	}
}

func TestSaleValueFloors(t *testing.T) {
	m := NewMarket()
	// 3 wood at 2.5 = 7.5, floored to 7.
	if got := m.SaleValue(world.ResourceWood, 3); got != 7 {
		t.Fatalf("sale value = %d, want 7", got)
	}
}

func TestInventoryValue(t *testing.T) {
	m := NewMarket()
	var inv [7]int
	inv[world.ResourceCrystal] = 2
	inv[world.ResourceWood] = 2
	// 2*20 + 2*2.5 = 45
	if got := m.InventoryValue(inv); got != 45 {
		t.Fatalf("inventory value = %d, want 45", got)
	}
}

func TestQuotesAreStableOrder(t *testing.T) {
	m := NewMarket()
	quotes := m.Quotes()
	if len(quotes) != len(world.AllResources) {
		t.Fatalf("quote count = %d, want %d", len(quotes), len(world.AllResources))
	}
	for i, q := range quotes {
		if q.Resource != world.AllResources[i] {
			t.Fatalf("quote %d is %s, want %s", i, q.Resource, world.AllResources[i])
		}
	}
}
