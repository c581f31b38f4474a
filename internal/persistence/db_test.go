package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetaRoundTrip(t *testing.T) {
	db := testDB(t)

	if v, err := db.GetMeta("last_tick"); err != nil || v != "" {
		t.Fatalf("missing key: %q, %v", v, err)
	}
	if err := db.SaveMeta("last_tick", "42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveMeta("last_tick", "43"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := db.GetMeta("last_tick")
	if err != nil || v != "43" {
		t.Errorf("got %q, %v", v, err)
	}
}

func TestAgentsRoundTripWithLedgerStats(t *testing.T) {
	db := testDB(t)
	dice := entropy.New(1)
	reg := agents.NewRegistry()
	ledger := economy.NewLedger()

	a, err := reg.Register(agents.RegisterOpts{
		Name: "Saved", Strategy: agents.StrategyTrader,
		WalletAddress: "0xabc", WebhookURL: "https://example.com/hook",
	}, 3, 4, 7, dice)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	a.Inventory[world.ResourceGold] = 6
	a.Territory = 2
	if err := ledger.ModifyBalance(a, 120, economy.ReasonDeploy, 7); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.ModifyBalance(a, -20, economy.ReasonLandClaim, 8); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if err := db.SaveAgents(reg.All(), ledger); err != nil {
		t.Fatalf("save: %v", err)
	}

	reg2 := agents.NewRegistry()
	ledger2 := economy.NewLedger()
	n, err := db.LoadAgents(reg2, ledger2)
	if err != nil || n != 1 {
		t.Fatalf("load: %d, %v", n, err)
	}
	got := reg2.Get(a.ID)
	if got == nil {
		t.Fatal("agent missing after load")
	}
	if got.Name != "Saved" || got.Strategy != agents.StrategyTrader || got.X != 3 || got.Y != 4 {
		t.Errorf("identity lost: %+v", got)
	}
	if got.Balance != 100 || got.Territory != 2 {
		t.Errorf("balance %d territory %d", got.Balance, got.Territory)
	}
	if got.Inventory[world.ResourceGold] != 6 || got.FoodStock() != agents.StartingFood {
		t.Errorf("inventory lost: %v", got.Inventory)
	}
	if got.APIKey != a.APIKey || got.WebhookURL != a.WebhookURL || got.WalletAddress != "0xabc" {
		t.Error("credentials lost")
	}

	st := ledger2.StatsFor(a.ID)
	if st.Earned != 120 || st.Spent != 20 {
		t.Errorf("stats earned %d spent %d, want 120/20", st.Earned, st.Spent)
	}
	if st.Breakdown[economy.ReasonDeploy] != 120 {
		t.Errorf("breakdown = %v", st.Breakdown)
	}
}

func TestTilesSaveOnlyDivergent(t *testing.T) {
	db := testDB(t)
	m := world.Generate(20, 20, 9)

	// Mark one tile with state worth keeping, strip another's deposit.
	var claimed, emptied *world.Tile
	for i := range m.Tiles {
		t2 := &m.Tiles[i]
		if claimed == nil && t2.Biome.Walkable() && !t2.HasResource() {
			claimed = t2
			continue
		}
		if emptied == nil && t2.HasResource() {
			emptied = t2
		}
	}
	if claimed == nil || emptied == nil {
		t.Fatal("generated map lacks test tiles")
	}
	claimed.OwnerID = "owner-1"
	claimed.Building = world.BuildingFarm
	claimed.BuildingOwner = "owner-1"
	emptied.Resource = world.ResourceNone
	emptied.ResourceAmount = 0

	if err := db.SaveTiles(m); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Restore over a fresh generation of the same seed.
	m2 := world.Generate(20, 20, 9)
	n, err := db.LoadTiles(m2)
	if err != nil || n == 0 {
		t.Fatalf("load: %d, %v", n, err)
	}
	got := m2.At(claimed.X, claimed.Y)
	if got.OwnerID != "owner-1" || got.Building != world.BuildingFarm {
		t.Errorf("claim lost: %+v", got)
	}
	if m2.At(emptied.X, emptied.Y).HasResource() {
		t.Error("mined-out deposit regenerated on load")
	}
}

func TestAlliancesRoundTrip(t *testing.T) {
	db := testDB(t)
	store := social.NewAlliances()
	store.Restore(&social.Alliance{
		ID: "al-1", Name: "Ash-Birch Pact",
		Members: []string{"a", "b"}, Treasury: 12, CreatedTick: 3,
	})

	if err := db.SaveAlliances(store.All()); err != nil {
		t.Fatalf("save: %v", err)
	}
	store2 := social.NewAlliances()
	n, err := db.LoadAlliances(store2)
	if err != nil || n != 1 {
		t.Fatalf("load: %d, %v", n, err)
	}
	al := store2.Get("al-1")
	if al == nil || al.Treasury != 12 || len(al.Members) != 2 || !al.HasMember("b") {
		t.Errorf("alliance = %+v", al)
	}
}

func TestProposalsRoundTrip(t *testing.T) {
	db := testDB(t)
	store := social.NewAlliances()
	store.RestoreProposal(&social.Proposal{
		ID: "p-1", FromID: "a", ToID: "b", CreatedTick: 4,
	})
	store.RestoreProposal(&social.Proposal{
		ID: "p-2", FromID: "c", ToID: "b", CreatedTick: 6,
	})

	if err := db.SaveProposals(store.Proposals()); err != nil {
		t.Fatalf("save: %v", err)
	}
	store2 := social.NewAlliances()
	n, err := db.LoadProposals(store2)
	if err != nil || n != 2 {
		t.Fatalf("load: %d, %v", n, err)
	}
	p := store2.OpenProposalFor("b")
	if p == nil || p.ID != "p-1" || p.FromID != "a" || p.CreatedTick != 4 {
		t.Errorf("oldest open proposal = %+v", p)
	}

	// A second save replaces the table.
	if err := db.SaveProposals(nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	store3 := social.NewAlliances()
	if n, err := db.LoadProposals(store3); err != nil || n != 0 {
		t.Errorf("reload after clear: %d, %v", n, err)
	}
}

func TestBalanceRecorderSplitsEarnings(t *testing.T) {
	db := testDB(t)
	db.RecordBalance(economy.Entry{AgentID: "a", Delta: 50, Reason: economy.ReasonSellResource, BalanceAfter: 50, Tick: 1})
	db.RecordBalance(economy.Entry{AgentID: "a", Delta: -10, Reason: economy.ReasonLandClaim, BalanceAfter: 40, Tick: 2})

	var history int
	if err := db.conn.Get(&history, "SELECT COUNT(*) FROM balance_history WHERE agent_id = 'a'"); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if history != 2 {
		t.Errorf("history rows = %d, want 2", history)
	}
	var earnings int
	if err := db.conn.Get(&earnings, "SELECT COUNT(*) FROM earnings WHERE agent_id = 'a'"); err != nil {
		t.Fatalf("count earnings: %v", err)
	}
	if earnings != 1 {
		t.Errorf("earnings rows = %d, want only the credit", earnings)
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	db := testDB(t)
	tx := chain.Tx{
		ID: "tx-1", Kind: chain.TxTrade, AgentID: "a",
		Detail: `{"value":9}`, Tick: 5,
		CreatedAt: time.Now().UTC(), Status: "confirmed",
	}
	db.SaveTransaction(tx)
	db.SaveTransaction(tx)

	got, err := db.RecentTransactions(10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx-1" || got[0].Status != "confirmed" {
		t.Errorf("transactions = %+v", got)
	}
}

func TestActivitiesAppendAndReadBack(t *testing.T) {
	db := testDB(t)
	err := db.SaveActivities([]Activity{
		{Tick: 1, AgentID: "a", Kind: "MOVE", Message: "first", X: 1, Y: 1},
		{Tick: 2, AgentID: "a", Kind: "MINE", Message: "second", X: 1, Y: 1},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.RecentActivities(1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Message != "second" {
		t.Errorf("newest first broken: %+v", got)
	}
}

func TestListingsAndMarketRoundTrip(t *testing.T) {
	db := testDB(t)
	listings := economy.NewListings()
	listings.List(2, 3, "seller", 16, 4)
	if err := db.SaveListings(listings.All()); err != nil {
		t.Fatalf("save listings: %v", err)
	}
	listings2 := economy.NewListings()
	if n, err := db.LoadListings(listings2); err != nil || n != 1 {
		t.Fatalf("load listings: %d, %v", n, err)
	}
	if l := listings2.At(2, 3); l == nil || l.Price != 16 || l.SellerID != "seller" {
		t.Errorf("listing = %+v", l)
	}

	market := economy.NewMarket()
	market.SetPrice(world.ResourceWood, 4.25)
	if err := db.SaveMarket(market.Quotes()); err != nil {
		t.Fatalf("save market: %v", err)
	}
	market2 := economy.NewMarket()
	if err := db.LoadMarket(market2); err != nil {
		t.Fatalf("load market: %v", err)
	}
	if got := market2.Price(world.ResourceWood); got != 4.25 {
		t.Errorf("wood price = %v, want 4.25", got)
	}
}
