package brain

import (
	"testing"

	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

func ruleContext(t *testing.T) *Context {
	t.Helper()
	m := world.NewMap(12, 12, 1)
	for i := range m.Tiles {
		m.Tiles[i].Biome = world.BiomePlains
	}
	return &Context{
		World:       m,
		Registry:    agents.NewRegistry(),
		Alliances:   social.NewAlliances(),
		Market:      economy.NewMarket(),
		Dice:        entropy.New(3),
		AttackStake: 10,
	}
}

func spawn(t *testing.T, c *Context, name string, strategy agents.Strategy, x, y int) *agents.Agent {
	t.Helper()
	a, err := c.Registry.Register(agents.RegisterOpts{Name: name, Strategy: strategy, Builtin: true}, x, y, 0, c.Dice)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c.World.At(x, y).OccupantID = a.ID
	return a
}

func TestDesperationTiers(t *testing.T) {
	cases := []struct {
		name   string
		health int
		food   int
		want   Desperation
	}{
		{"full health full larder", 100, 8, DesperationStable},
		{"low health", 20, 8, DesperationCritical},
		{"starving and hurt", 40, 0, DesperationCritical},
		{"hurt", 40, 8, DesperationDesperate},
		{"starving", 100, 0, DesperationDesperate},
		{"bruised", 60, 8, DesperationWorried},
		{"low larder", 100, 2, DesperationWorried},
		{"healthy", 61, 3, DesperationStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &agents.Agent{Health: tc.health}
			a.Inventory[world.ResourceFood] = tc.food
			if got := DesperationOf(a); got != tc.want {
				t.Errorf("health %d food %d: got %s, want %s", tc.health, tc.food, got, tc.want)
			}
		})
	}
}

func TestStarvingAgentMinesFoodUnderfoot(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Hungry", agents.StrategyWarrior, 5, 5)
	a.Inventory[world.ResourceFood] = 0
	tile := c.World.At(5, 5)
	tile.Resource = world.ResourceFood
	tile.ResourceAmount = 3
	c.Agent = a

	act := RuleDecide(c)
	if act.Kind != actions.KindMine {
		t.Errorf("starving agent chose %s over mining food", act.Kind)
	}
}

func TestStarvingAgentWalksTowardFood(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Hungry", agents.StrategyMiner, 5, 5)
	a.Inventory[world.ResourceFood] = 0
	deposit := c.World.At(8, 5)
	deposit.Resource = world.ResourceFood
	deposit.ResourceAmount = 5
	c.Agent = a

	act := RuleDecide(c)
	if act.Kind != actions.KindMove {
		t.Fatalf("starving agent chose %s over walking to food", act.Kind)
	}
	if act.DX != 1 {
		t.Errorf("stepped dx=%d, want 1 toward the deposit", act.DX)
	}
}

func TestCriticalAgentFleesAdjacentEnemy(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Wounded", agents.StrategyWarrior, 5, 5)
	spawn(t, c, "Menace", agents.StrategyWarrior, 6, 5)
	a.Health = 15
	c.Agent = a

	act := RuleDecide(c)
	if act.Kind != actions.KindMove {
		t.Fatalf("critical agent chose %s over fleeing", act.Kind)
	}
	if act.DX != -1 {
		t.Errorf("fled dx=%d, want -1 away from the enemy", act.DX)
	}
}

func TestRepetitionForcesDifferentCategory(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Rut", agents.StrategyMiner, 5, 5)
	tile := c.World.At(5, 5)
	tile.Resource = world.ResourceIron
	tile.ResourceAmount = 50
	for i := 0; i < RepetitionLimit; i++ {
		a.Remember(uint64(i), string(actions.KindMine), "")
	}
	c.Agent = a

	for i := 0; i < 20; i++ {
		act := RuleDecide(c)
		if act.Kind.Category() == "gather" {
			t.Fatalf("round %d: still mining after %d repeats", i, RepetitionLimit)
		}
	}
}

func TestDesperationBypassesRepetitionGuard(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Hungry", agents.StrategyMiner, 5, 5)
	a.Inventory[world.ResourceFood] = 0
	tile := c.World.At(5, 5)
	tile.Resource = world.ResourceFood
	tile.ResourceAmount = 50
	for i := 0; i < RepetitionLimit+1; i++ {
		a.Remember(uint64(i), string(actions.KindMine), "")
	}
	c.Agent = a

	if act := RuleDecide(c); act.Kind != actions.KindMine {
		t.Errorf("starving agent varied into %s instead of eating", act.Kind)
	}
}

func TestAttackRuleNeedsStakeFunds(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Broke", agents.StrategyWarrior, 5, 5)
	spawn(t, c, "Target", agents.StrategyMiner, 6, 5)
	c.Agent = a

	for i := 0; i < 50; i++ {
		if act := RuleDecide(c); act.Kind == actions.KindAttack {
			t.Fatal("agent attacked without covering the stake")
		}
	}
	a.Balance = 100
	sawAttack := false
	for i := 0; i < 50 && !sawAttack; i++ {
		sawAttack = RuleDecide(c).Kind == actions.KindAttack
	}
	if !sawAttack {
		t.Error("funded warrior never attacked an adjacent enemy")
	}
}

func TestAttackRuleSparesAllies(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Loyal", agents.StrategyWarrior, 5, 5)
	b := spawn(t, c, "Friend", agents.StrategyMiner, 6, 5)
	a.Balance = 100
	p, _ := c.Alliances.Propose(a, b, 0)
	if _, err := c.Alliances.Accept(p, a, b, c.Registry.Get, 0); err != nil {
		t.Fatalf("accept: %v", err)
	}
	c.Agent = a

	for i := 0; i < 50; i++ {
		if act := RuleDecide(c); act.Kind == actions.KindAttack {
			t.Fatal("warrior targeted an ally")
		}
	}
}

func TestDiplomatAcceptsOpenProposals(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Envoy", agents.StrategyDiplomat, 5, 5)
	b := spawn(t, c, "Suitor", agents.StrategyMiner, 6, 5)
	if _, err := c.Alliances.Propose(b, a, 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	c.Agent = a

	saw := false
	for i := 0; i < 50 && !saw; i++ {
		saw = RuleDecide(c).Kind == actions.KindAcceptAlliance
	}
	if !saw {
		t.Error("diplomat never accepted the open proposal")
	}
}

func TestRuleDecideNeverReturnsNothing(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Idle", agents.StrategyNomad, 5, 5)
	c.Agent = a
	for i := 0; i < 100; i++ {
		if RuleDecide(c).Kind == "" {
			t.Fatal("rule interpreter produced an empty action")
		}
	}
}

func TestResolveParsesFencedReplies(t *testing.T) {
	c := ruleContext(t)
	target := spawn(t, c, "Mark", agents.StrategyMiner, 6, 5)
	self := spawn(t, c, "Self", agents.StrategyWarrior, 5, 5)
	e := &Engine{Registry: c.Registry}

	raw := []byte("Thinking it over...\n```json\n{\"action\": \"attack\", \"target_id\": \"" +
		target.ID + "\", \"reason\": \"weakest nearby\"}\n```")
	act, ok := e.Resolve(self, raw)
	if !ok {
		t.Fatal("fenced reply did not resolve")
	}
	if act.Kind != actions.KindAttack || act.TargetID != target.ID || act.Reason != "weakest nearby" {
		t.Errorf("resolved %+v", act)
	}
}

func TestResolveClampsAndRejects(t *testing.T) {
	c := ruleContext(t)
	self := spawn(t, c, "Self", agents.StrategyWarrior, 5, 5)
	e := &Engine{Registry: c.Registry}

	act, ok := e.Resolve(self, []byte(`{"action": "MOVE", "dx": 7, "dy": -9}`))
	if !ok || act.DX != 1 || act.DY != -1 {
		t.Errorf("move resolved to %+v ok=%v, want clamped unit step", act, ok)
	}
	act, ok = e.Resolve(self, []byte(`{"action": "CONTRIBUTE_ALLIANCE", "amount": 4}`))
	if !ok || act.Kind != actions.KindContribute || act.Amount != 4 {
		t.Errorf("contribute resolved to %+v ok=%v", act, ok)
	}

	bad := [][]byte{
		[]byte("no json here"),
		[]byte(`{"action": "TELEPORT"}`),
		[]byte(`{"action": "MOVE", "dx": 0, "dy": 0}`),
		[]byte(`{"action": "ATTACK", "target_id": "nobody"}`),
		[]byte(`{"action": "ATTACK", "target_id": "` + self.ID + `"}`),
		[]byte(`{"action": "BUILD", "building": "CASTLE"}`),
		[]byte(`{"action": "SELL_RESOURCE", "resource": "WOOD", "amount": 0}`),
		[]byte(`{"action": "CONTRIBUTE_ALLIANCE", "amount": 0}`),
	}
	for _, raw := range bad {
		if _, ok := e.Resolve(self, raw); ok {
			t.Errorf("reply %s resolved, want fallback", raw)
		}
	}
}

func TestResolveUppercasesNames(t *testing.T) {
	c := ruleContext(t)
	self := spawn(t, c, "Self", agents.StrategyBuilder, 5, 5)
	e := &Engine{Registry: c.Registry}

	act, ok := e.Resolve(self, []byte(`{"action": "build", "building": "farm"}`))
	if !ok || act.Building != world.BuildingFarm {
		t.Errorf("resolved %+v ok=%v", act, ok)
	}
	act, ok = e.Resolve(self, []byte(`{"action": "sell_resource", "resource": "gold", "amount": 3}`))
	if !ok || act.Resource != world.ResourceGold || act.Amount != 3 {
		t.Errorf("resolved %+v ok=%v", act, ok)
	}
}

func TestObserveWidensVisionForAllies(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Watcher", agents.StrategyMiner, 5, 5)
	far := spawn(t, c, "Distant", agents.StrategyMiner, 11, 5)
	o := &Observer{World: c.World, Registry: c.Registry, Alliances: c.Alliances, Market: c.Market}

	obs := o.Observe(a, 1, nil)
	for _, v := range obs.Agents {
		if v.ID == far.ID {
			t.Fatal("saw an agent beyond base vision")
		}
	}

	// Any pact membership widens the radius past the distant agent.
	friend := spawn(t, c, "Friend", agents.StrategyMiner, 4, 5)
	p, _ := c.Alliances.Propose(a, friend, 0)
	if _, err := c.Alliances.Accept(p, a, friend, c.Registry.Get, 0); err != nil {
		t.Fatalf("accept: %v", err)
	}
	obs = o.Observe(a, 2, nil)
	seen := false
	for _, v := range obs.Agents {
		if v.ID == far.ID {
			seen = true
		}
	}
	if !seen {
		t.Error("allied vision bonus not applied")
	}
}

func TestObserveFiltersEvents(t *testing.T) {
	c := ruleContext(t)
	a := spawn(t, c, "Watcher", agents.StrategyMiner, 5, 5)
	o := &Observer{World: c.World, Registry: c.Registry, Alliances: c.Alliances, Market: c.Market}

	feed := []Event{
		{Tick: 2, Message: "ancient history", X: 5, Y: 5},
		{Tick: 19, Message: "far away", X: 50, Y: 50},
		{Tick: 20, Message: "next door", X: 6, Y: 5},
	}
	obs := o.Observe(a, 20, feed)
	if len(obs.Events) != 1 || obs.Events[0].Message != "next door" {
		t.Errorf("events = %+v, want only the fresh nearby one", obs.Events)
	}
}
