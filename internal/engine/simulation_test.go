package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/brain"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/config"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/llm"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

func testSimulation(t *testing.T) *Simulation {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.BuiltinAgents = 0

	m := world.NewMap(16, 16, 1)
	for i := range m.Tiles {
		m.Tiles[i].Biome = world.BiomePlains
	}

	dice := entropy.New(5)
	reg := agents.NewRegistry()
	ledger := economy.NewLedger()
	market := economy.NewMarket()
	alliances := social.NewAlliances()

	decider := &brain.Engine{
		World:     m,
		Registry:  reg,
		Alliances: alliances,
		Market:    market,
		Dice:      dice,
		Observer: &brain.Observer{
			World: m, Registry: reg, Alliances: alliances, Market: market,
		},
		Pool:        llm.NewPool(nil, "", "", time.Second, time.Minute),
		Webhook:     llm.NewWebhook(time.Second),
		AttackStake: cfg.Economy.AttackStake,
	}
	worker := chain.New("", time.Millisecond, 5, nil)

	return NewSimulation(cfg, m, reg, ledger, market, economy.NewListings(),
		alliances, dice, decider, worker)
}

func simAgent(t *testing.T, s *Simulation, name string, builtin bool, x, y int) *agents.Agent {
	t.Helper()
	a, err := s.Registry.Register(agents.RegisterOpts{Name: name, Builtin: builtin}, x, y, 0, s.Dice)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	s.World.At(x, y).OccupantID = a.ID
	return a
}

func TestHungerEatsFoodBeforeHealth(t *testing.T) {
	s := testSimulation(t)
	a := simAgent(t, s, "Eater", true, 5, 5)
	a.Inventory[world.ResourceFood] = 1

	s.applyHunger(1)
	if a.FoodStock() != 0 || a.Health != agents.MaxHealth {
		t.Errorf("after fed hunger: food %d health %d", a.FoodStock(), a.Health)
	}
	s.applyHunger(2)
	if a.Health != agents.MaxHealth-5 {
		t.Errorf("empty larder did not cost health: %d", a.Health)
	}
}

func TestStarvationKillsAndCleansUp(t *testing.T) {
	s := testSimulation(t)
	a := simAgent(t, s, "Doomed", true, 5, 5)
	b := simAgent(t, s, "Partner", true, 6, 5)
	a.Inventory[world.ResourceFood] = 0
	a.Health = 5
	s.Listings.List(5, 5, a.ID, 10, 0)
	p, _ := s.Alliances.Propose(a, b, 0)
	if _, err := s.Alliances.Accept(p, a, b, s.Registry.Get, 0); err != nil {
		t.Fatalf("accept: %v", err)
	}

	s.applyHunger(1)
	if a.Alive || a.Health != 0 || a.Deaths != 1 {
		t.Errorf("agent state after starvation: alive=%v health=%d deaths=%d", a.Alive, a.Health, a.Deaths)
	}
	if s.World.At(5, 5).OccupantID != "" {
		t.Error("corpse still occupies its tile")
	}
	if s.Listings.At(5, 5) != nil {
		t.Error("dead seller's listing survived")
	}
	if a.AllianceID != "" || b.AllianceID != "" {
		t.Error("two-member pact did not dissolve on death")
	}

	feed := s.RecentFeed(5)
	if len(feed) == 0 || feed[0].AgentID != a.ID {
		t.Errorf("starvation not logged: %+v", feed)
	}
}

func TestBuildingIncomeByKind(t *testing.T) {
	s := testSimulation(t)
	owner := simAgent(t, s, "Landlord", true, 5, 5)
	dead := simAgent(t, s, "Ghost", true, 9, 9)
	dead.Alive = false

	farm := s.World.At(2, 2)
	farm.Building = world.BuildingFarm
	farm.BuildingOwner = owner.ID
	temple := s.World.At(3, 3)
	temple.Building = world.BuildingTemple
	temple.BuildingOwner = owner.ID
	haunted := s.World.At(10, 10)
	haunted.Building = world.BuildingFarm
	haunted.BuildingOwner = dead.ID

	foodBefore := owner.FoodStock()
	s.applyBuildingIncome(1)

	if owner.FoodStock() != foodBefore+2 {
		t.Errorf("farm yield: food %d, want +2", owner.FoodStock()-foodBefore)
	}
	if owner.Balance != 1 {
		t.Errorf("temple yield: balance %d, want 1", owner.Balance)
	}
	if dead.Inventory.Total() != agents.StartingFood {
		t.Error("dead owner's farm produced")
	}

	// A mine pays one unit of a random resource on top of the farm's two.
	mine := s.World.At(4, 4)
	mine.Building = world.BuildingMine
	mine.BuildingOwner = owner.ID
	invBefore := owner.Inventory.Total()
	s.applyBuildingIncome(2)
	if owner.Inventory.Total() != invBefore+3 {
		t.Errorf("second round yield %d, want farm 2 plus mine 1", owner.Inventory.Total()-invBefore)
	}
}

func TestTowerFeesSkipOwnerAndBroke(t *testing.T) {
	s := testSimulation(t)
	owner := simAgent(t, s, "Warden", true, 5, 5)
	payer := simAgent(t, s, "Visitor", true, 6, 5)
	broke := simAgent(t, s, "Pauper", true, 5, 6)
	distant := simAgent(t, s, "Faraway", true, 12, 12)
	payer.Balance = 10
	distant.Balance = 10

	tower := s.World.At(5, 5)
	tower.Building = world.BuildingTower
	tower.BuildingOwner = owner.ID

	s.applyTowerFees(1)
	if payer.Balance != 10-economy.TowerFee {
		t.Errorf("payer balance = %d", payer.Balance)
	}
	if owner.Balance != economy.TowerFee {
		t.Errorf("owner collected %d", owner.Balance)
	}
	if broke.Balance != 0 {
		t.Errorf("broke agent went negative: %d", broke.Balance)
	}
	if distant.Balance != 10 {
		t.Error("tower reached beyond its radius")
	}
}

func TestTowerFeesExemptAllies(t *testing.T) {
	s := testSimulation(t)
	owner := simAgent(t, s, "Warden", true, 5, 5)
	friend := simAgent(t, s, "Friend", true, 6, 5)
	stranger := simAgent(t, s, "Stranger", true, 5, 6)
	friend.Balance = 10
	stranger.Balance = 10

	p, _ := s.Alliances.Propose(owner, friend, 0)
	if _, err := s.Alliances.Accept(p, owner, friend, s.Registry.Get, 0); err != nil {
		t.Fatalf("accept: %v", err)
	}

	tower := s.World.At(5, 5)
	tower.Building = world.BuildingTower
	tower.BuildingOwner = owner.ID

	s.applyTowerFees(1)
	if friend.Balance != 10 {
		t.Errorf("allied agent paid the tower fee: balance %d", friend.Balance)
	}
	if stranger.Balance != 10-economy.TowerFee {
		t.Errorf("stranger balance = %d", stranger.Balance)
	}
}

func TestIdleChecksBenchAndWake(t *testing.T) {
	s := testSimulation(t)
	s.Config.Economy.BrainFeePerTick = 2
	platform := simAgent(t, s, "Platform", false, 5, 5)
	builtin := simAgent(t, s, "House", true, 6, 5)
	hooked := simAgent(t, s, "Hooked", false, 7, 5)
	hooked.WebhookURL = "https://example.com/decide"

	s.applyIdleChecks()
	if !platform.Idle {
		t.Error("broke platform agent not benched")
	}
	if builtin.Idle || hooked.Idle {
		t.Error("builtin or webhook agent benched")
	}

	platform.Balance = 5
	s.applyIdleChecks()
	if platform.Idle {
		t.Error("topped-up agent still benched")
	}
}

func TestDecisionBatchRotatesBuiltins(t *testing.T) {
	s := testSimulation(t)
	s.Config.Sim.BuiltinBatch = 2
	var builtins []*agents.Agent
	for i := 0; i < 5; i++ {
		builtins = append(builtins, simAgent(t, s, "", true, i, 0))
	}
	ext := simAgent(t, s, "Player", false, 10, 10)
	ext.Balance = 100
	idle := simAgent(t, s, "Benched", false, 11, 10)
	idle.Idle = true

	seen := map[string]int{}
	for round := 0; round < 5; round++ {
		batch := s.decisionBatch()
		foundExt := false
		for _, a := range batch {
			if a.ID == ext.ID {
				foundExt = true
				continue
			}
			if a.ID == idle.ID {
				t.Fatal("idle agent included in the batch")
			}
			seen[a.ID]++
		}
		if !foundExt {
			t.Fatalf("round %d: external agent missing", round)
		}
		if len(batch) != 3 {
			t.Fatalf("round %d: batch size %d, want external plus 2 builtins", round, len(batch))
		}
	}
	// 10 builtin slots over 5 rounds, cursor wraps over 5 agents evenly.
	for _, b := range builtins {
		if seen[b.ID] != 2 {
			t.Errorf("builtin %s decided %d times, want 2", b.Name, seen[b.ID])
		}
	}
}

func TestStepRunsDecisionsAndFeed(t *testing.T) {
	s := testSimulation(t)
	a := simAgent(t, s, "Actor", true, 5, 5)
	tile := s.World.At(5, 5)
	tile.Resource = world.ResourceIron
	tile.ResourceAmount = 50

	var persisted []FeedEntry
	persistedAt := uint64(0)
	s.Persist = func(_ *Simulation, tick uint64, fresh []FeedEntry) {
		persisted = append(persisted, fresh...)
		persistedAt = tick
	}
	var snaps []Snapshot
	s.OnSnapshot = func(sn Snapshot) { snaps = append(snaps, sn) }

	for i := 0; i < s.Config.Sim.PersistEveryTicks; i++ {
		s.Step(context.Background())
	}

	if s.CurrentTick() != 5 {
		t.Fatalf("tick = %d, want 5", s.CurrentTick())
	}
	if len(a.Memory) == 0 {
		t.Error("agent never decided")
	}
	if persistedAt != 5 || len(persisted) == 0 {
		t.Errorf("persist hook: tick %d, %d entries", persistedAt, len(persisted))
	}
	if len(snaps) != 5 {
		t.Fatalf("%d snapshots, want one per tick", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Tick != 5 || last.AgentCount != 1 || last.AliveCount != 1 {
		t.Errorf("snapshot = tick %d agents %d alive %d", last.Tick, last.AgentCount, last.AliveCount)
	}

	// Pending entries were flushed to Persist; the ring still serves reads.
	if len(s.RecentFeed(10)) == 0 {
		t.Error("feed ring empty after persist")
	}
}

func TestEpochRewardsPayThePodium(t *testing.T) {
	s := testSimulation(t)
	s.Config.Economy.LeaderboardRewards = []int{50, 30}
	first := simAgent(t, s, "First", true, 5, 5)
	second := simAgent(t, s, "Second", true, 6, 5)
	third := simAgent(t, s, "Third", true, 7, 5)
	first.Wealth = 100
	second.Wealth = 50

	s.awardEpoch(100)
	if first.Balance != 50 || second.Balance != 30 || third.Balance != 0 {
		t.Errorf("rewards %d/%d/%d, want 50/30/0", first.Balance, second.Balance, third.Balance)
	}
	feed := s.RecentFeed(5)
	if len(feed) != 2 {
		t.Errorf("%d podium feed entries, want 2", len(feed))
	}
}

func TestSpawnBuiltinsFillsTheGap(t *testing.T) {
	s := testSimulation(t)
	s.Config.Sim.BuiltinAgents = 4
	simAgent(t, s, "Existing", true, 5, 5)

	if err := s.SpawnBuiltins(0); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	count := 0
	for _, a := range s.Registry.All() {
		if a.Builtin {
			count++
			if a.Name == "Existing" {
				continue
			}
			if a.Balance != s.Config.Economy.PlatformAgentBalance {
				t.Errorf("builtin %s spawned with balance %d", a.Name, a.Balance)
			}
			st := s.Ledger.StatsFor(a.ID)
			if st.Breakdown[economy.ReasonDeploy] != s.Config.Economy.PlatformAgentBalance {
				t.Errorf("builtin %s funded off the ledger: %+v", a.Name, st.Breakdown)
			}
			if tile := s.World.At(a.X, a.Y); tile.OccupantID != a.ID {
				t.Errorf("builtin %s never stamped its tile", a.Name)
			}
		}
	}
	if count != 4 {
		t.Errorf("builtin count = %d, want 4", count)
	}

	if err := s.SpawnBuiltins(0); err != nil {
		t.Fatalf("respawn: %v", err)
	}
	if s.Registry.Count() != 4 {
		t.Error("SpawnBuiltins overfilled on a second call")
	}
}

func TestRegisterExternalDeposits(t *testing.T) {
	s := testSimulation(t)
	a, err := s.RegisterExternal(agents.RegisterOpts{Name: "Player", WalletAddress: "0xabc"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.Balance != s.Config.Economy.DeployDeposit {
		t.Errorf("deposit = %d, want %d", a.Balance, s.Config.Economy.DeployDeposit)
	}
	if a.Builtin {
		t.Error("external agent marked builtin")
	}
	st := s.Ledger.StatsFor(a.ID)
	if st.Breakdown[economy.ReasonDeploy] != s.Config.Economy.DeployDeposit {
		t.Errorf("deploy not on the ledger: %+v", st.Breakdown)
	}
	if len(s.RecentFeed(3)) == 0 {
		t.Error("deployment not announced in the feed")
	}
}

func TestSpawnStakesTheGround(t *testing.T) {
	s := testSimulation(t)
	seen := map[[2]int]bool{}
	for i := 0; i < 6; i++ {
		a, err := s.RegisterExternal(agents.RegisterOpts{Name: fmt.Sprintf("Settler%d", i)})
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		pos := [2]int{a.X, a.Y}
		if seen[pos] {
			t.Fatalf("two agents spawned on tile %v", pos)
		}
		seen[pos] = true

		tile := s.World.At(a.X, a.Y)
		if tile.OccupantID != a.ID {
			t.Errorf("%s does not occupy its spawn tile", a.Name)
		}
		if tile.OwnerID != a.ID || a.Territory != 1 {
			t.Errorf("%s missing the free spawn claim: owner %q territory %d",
				a.Name, tile.OwnerID, a.Territory)
		}
	}
}

func TestNewSimulationRestampsOccupancy(t *testing.T) {
	s := testSimulation(t)
	saved, err := s.Registry.Register(agents.RegisterOpts{Name: "Saved", Builtin: true}, 4, 4, 0, s.Dice)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ghost, err := s.Registry.Register(agents.RegisterOpts{Name: "Ghost", Builtin: true}, 8, 8, 0, s.Dice)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ghost.Alive = false

	// Tile occupancy is not saved, so a rebuild from the same registry
	// and map must put living agents back on their tiles.
	s2 := NewSimulation(s.Config, s.World, s.Registry, s.Ledger, s.Market,
		s.Listings, s.Alliances, s.Dice, s.Brain, s.Chain)
	if got := s2.World.At(4, 4).OccupantID; got != saved.ID {
		t.Errorf("restored agent not on its tile: occupant %q", got)
	}
	if got := s2.World.At(8, 8).OccupantID; got != "" {
		t.Errorf("dead agent reoccupied its tile: occupant %q", got)
	}
}

func TestRecentFeedNewestFirst(t *testing.T) {
	s := testSimulation(t)
	a := simAgent(t, s, "Chatty", true, 5, 5)
	s.SetTick(1)
	s.logAction(a.ID, "MOVE", "first")
	s.logAction(a.ID, "MOVE", "second")

	feed := s.RecentFeed(10)
	if len(feed) != 2 || feed[0].Message != "second" || feed[1].Message != "first" {
		t.Errorf("feed = %+v", feed)
	}
	if feed[0].X != a.X || feed[0].Y != a.Y {
		t.Error("feed entry missing the agent position")
	}
}
