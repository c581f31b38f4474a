// Rule building blocks: target search, pathing steps, trade matching.
package brain

import (
	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/world"
)

// tradeSurplusMin is the stock above which a resource counts as
// tradeable surplus.
const tradeSurplusMin = 2

// rareOrder is the acquisition preference of scholar-type strategies.
var rareOrder = []world.Resource{world.ResourceCrystal, world.ResourceGold, world.ResourceIron}

func mineHere(c *Context) (actions.Action, bool) {
	t := c.World.At(c.Agent.X, c.Agent.Y)
	if t == nil || !t.HasResource() {
		return actions.Action{}, false
	}
	return actions.Action{Kind: actions.KindMine}, true
}

func mineFoodFirst(c *Context) (actions.Action, bool) {
	t := c.World.At(c.Agent.X, c.Agent.Y)
	if t != nil && t.Resource == world.ResourceFood && t.ResourceAmount > 0 {
		return actions.Action{Kind: actions.KindMine}, true
	}
	return mineHere(c)
}

func mineRare(c *Context) (actions.Action, bool) {
	t := c.World.At(c.Agent.X, c.Agent.Y)
	if t == nil || !t.HasResource() {
		return actions.Action{}, false
	}
	for _, res := range rareOrder {
		if t.Resource == res {
			return actions.Action{Kind: actions.KindMine}, true
		}
	}
	return actions.Action{}, false
}

func moveTowardRare(c *Context) (actions.Action, bool) {
	for _, res := range rareOrder {
		if target := nearestResourceTile(c, res); target != nil {
			return stepToward(c, target.X, target.Y)
		}
	}
	return actions.Action{}, false
}

// moveTowardResourceRule walks toward a deposit of the given kind;
// ResourceNone means any deposit.
func moveTowardResourceRule(res world.Resource) func(c *Context) (actions.Action, bool) {
	return func(c *Context) (actions.Action, bool) {
		target := nearestResourceTile(c, res)
		if target == nil {
			return actions.Action{}, false
		}
		return stepToward(c, target.X, target.Y)
	}
}

func moveTowardRichest(c *Context) (actions.Action, bool) {
	var best *agents.Agent
	for _, other := range c.Registry.Alive() {
		if other.ID == c.Agent.ID || c.Alliances.AreAllied(c.Agent, other) {
			continue
		}
		if c.Agent.DistanceTo(other) > ruleScanRadius {
			continue
		}
		if best == nil || other.Balance > best.Balance {
			best = other
		}
	}
	if best == nil {
		return actions.Action{}, false
	}
	return stepToward(c, best.X, best.Y)
}

func attackWeakest(c *Context) (actions.Action, bool) {
	target := weakestEnemy(c, actions.AttackRange)
	if target == nil {
		return actions.Action{}, false
	}
	if c.Agent.Balance < c.AttackStake {
		return actions.Action{}, false
	}
	return actions.Action{Kind: actions.KindAttack, TargetID: target.ID}, true
}

func tradeSurplus(c *Context) (actions.Action, bool) {
	a := c.Agent
	var give world.Resource
	for _, res := range world.AllResources {
		if res == world.ResourceFood {
			continue
		}
		if a.Inventory[res] > tradeSurplusMin && (give == world.ResourceNone || a.Inventory[res] > a.Inventory[give]) {
			give = res
		}
	}
	if give == world.ResourceNone {
		return actions.Action{}, false
	}
	for _, other := range c.Registry.Alive() {
		if other.ID == a.ID || a.DistanceTo(other) > actions.TradeRange {
			continue
		}
		for _, want := range world.AllResources {
			if want == give || a.Inventory[want] > tradeSurplusMin {
				continue
			}
			if other.Inventory[want] > tradeSurplusMin {
				return actions.Action{
					Kind: actions.KindTrade, TargetID: other.ID,
					Resource: give, Amount: 2,
					WantResource: want, WantAmount: 2,
				}, true
			}
		}
	}
	return actions.Action{}, false
}

func tradeForFood(c *Context) (actions.Action, bool) {
	a := c.Agent
	var give world.Resource
	for _, res := range world.AllResources {
		if res == world.ResourceFood {
			continue
		}
		if a.Inventory[res] > 0 && (give == world.ResourceNone || a.Inventory[res] > a.Inventory[give]) {
			give = res
		}
	}
	if give == world.ResourceNone {
		return actions.Action{}, false
	}
	for _, other := range c.Registry.Alive() {
		if other.ID == a.ID || a.DistanceTo(other) > actions.TradeRange {
			continue
		}
		if other.Inventory[world.ResourceFood] > tradeSurplusMin {
			return actions.Action{
				Kind: actions.KindTrade, TargetID: other.ID,
				Resource: give, Amount: 1,
				WantResource: world.ResourceFood, WantAmount: 2,
			}, true
		}
	}
	return actions.Action{}, false
}

func sellSurplus(c *Context) (actions.Action, bool) {
	a := c.Agent
	var best world.Resource
	for _, res := range world.AllResources {
		if res == world.ResourceFood {
			continue
		}
		if a.Inventory[res] >= 5 && (best == world.ResourceNone || a.Inventory[res] > a.Inventory[best]) {
			best = res
		}
	}
	if best == world.ResourceNone {
		return actions.Action{}, false
	}
	amount := a.Inventory[best]
	if amount > 5 {
		amount = 5
	}
	return actions.Action{Kind: actions.KindSell, Resource: best, Amount: amount}, true
}

func claimBest(c *Context) (actions.Action, bool) {
	a := c.Agent
	var best *world.Tile
	consider := func(t *world.Tile) {
		if t == nil || !t.Biome.Walkable() || t.OwnerID != "" {
			return
		}
		if a.Balance < economy.LandClaimCost(t.Biome) {
			return
		}
		if best == nil || t.Biome.Desirability() > best.Biome.Desirability() {
			best = t
		}
	}
	consider(c.World.At(a.X, a.Y))
	for _, t := range c.World.Nearby(a.X, a.Y, actions.ClaimRange) {
		consider(t)
	}
	if best == nil {
		return actions.Action{}, false
	}
	return actions.Action{Kind: actions.KindClaim, X: best.X, Y: best.Y}, true
}

// buildPreferred tries structures in order until one is affordable on
// the agent's current tile.
func buildPreferred(prefs ...world.Building) func(c *Context) (actions.Action, bool) {
	return func(c *Context) (actions.Action, bool) {
		a := c.Agent
		t := c.World.At(a.X, a.Y)
		if t == nil || !t.Biome.Walkable() || t.Building != world.BuildingNone {
			return actions.Action{}, false
		}
		for _, b := range prefs {
			cost, ok := economy.CostOf(b)
			if !ok || a.Balance < cost.Currency {
				continue
			}
			affordable := true
			for res, qty := range cost.Resources {
				if a.Inventory[res] < qty {
					affordable = false
					break
				}
			}
			if affordable {
				return actions.Action{Kind: actions.KindBuild, Building: b}, true
			}
		}
		return actions.Action{}, false
	}
}

func acceptOpenProposal(c *Context) (actions.Action, bool) {
	if c.Alliances.OpenProposalFor(c.Agent.ID) == nil {
		return actions.Action{}, false
	}
	return actions.Action{Kind: actions.KindAcceptAlliance}, true
}

func proposeAllianceNearby(c *Context) (actions.Action, bool) {
	a := c.Agent
	for _, other := range c.Registry.Alive() {
		if other.ID == a.ID || c.Alliances.AreAllied(a, other) {
			continue
		}
		if a.DistanceTo(other) <= ruleScanRadius {
			return actions.Action{Kind: actions.KindProposeAlliance, TargetID: other.ID}, true
		}
	}
	return actions.Action{}, false
}

// contributeToPact donates spare currency to the agent's pact once the
// balance sits comfortably above survival money.
func contributeToPact(c *Context) (actions.Action, bool) {
	a := c.Agent
	if a.AllianceID == "" || c.Alliances.Get(a.AllianceID) == nil {
		return actions.Action{}, false
	}
	if a.Balance < 60 {
		return actions.Action{}, false
	}
	return actions.Action{Kind: actions.KindContribute, Amount: a.Balance / 10}, true
}

// adaptToStanding is the sage/oracle rule: press the advantage when
// ahead, consolidate when behind.
func adaptToStanding(c *Context) (actions.Action, bool) {
	switch c.Registry.Ranking(c.Agent) {
	case "DOMINATING":
		if act, ok := claimBest(c); ok {
			return act, true
		}
		return attackWeakest(c)
	case "DOING WELL":
		if act, ok := buildPreferred(world.BuildingMarket, world.BuildingHouse)(c); ok {
			return act, true
		}
		return claimBest(c)
	case "STRUGGLING":
		if act, ok := mineHere(c); ok {
			return act, true
		}
		return tradeSurplus(c)
	default:
		if act, ok := mineHere(c); ok {
			return act, true
		}
		return moveTowardResourceRule(world.ResourceNone)(c)
	}
}

func wander(c *Context) (actions.Action, bool) {
	act := wanderAlways(c)
	if act.Kind != actions.KindMove {
		return actions.Action{}, false
	}
	return act, true
}

// wanderAlways picks a random walkable direction, or idles when boxed
// in completely.
func wanderAlways(c *Context) actions.Action {
	a := c.Agent
	dirs := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	start := c.Dice.Intn(len(dirs))
	for i := 0; i < len(dirs); i++ {
		d := dirs[(start+i)%len(dirs)]
		t := c.World.At(a.X+d[0], a.Y+d[1])
		if t != nil && t.Biome.Walkable() && t.OccupantID == "" {
			return actions.Action{Kind: actions.KindMove, DX: d[0], DY: d[1]}
		}
	}
	return actions.Action{Kind: actions.KindIdle}
}

// stepToward takes one step in the target's direction, detouring along
// an axis when the diagonal is blocked.
func stepToward(c *Context, tx, ty int) (actions.Action, bool) {
	a := c.Agent
	dx, dy := sign(tx-a.X), sign(ty-a.Y)
	if dx == 0 && dy == 0 {
		return actions.Action{}, false
	}
	candidates := [][2]int{{dx, dy}, {dx, 0}, {0, dy}}
	for _, d := range candidates {
		if d[0] == 0 && d[1] == 0 {
			continue
		}
		t := c.World.At(a.X+d[0], a.Y+d[1])
		if t != nil && t.Biome.Walkable() && t.OccupantID == "" {
			return actions.Action{Kind: actions.KindMove, DX: d[0], DY: d[1]}, true
		}
	}
	act := wanderAlways(c)
	return act, act.Kind == actions.KindMove
}

// fleeFrom steps directly away from a threat.
func fleeFrom(c *Context, threat *agents.Agent) (actions.Action, bool) {
	a := c.Agent
	dx, dy := sign(a.X-threat.X), sign(a.Y-threat.Y)
	if dx == 0 && dy == 0 {
		act := wanderAlways(c)
		return act, act.Kind == actions.KindMove
	}
	candidates := [][2]int{{dx, dy}, {dx, 0}, {0, dy}}
	for _, d := range candidates {
		if d[0] == 0 && d[1] == 0 {
			continue
		}
		t := c.World.At(a.X+d[0], a.Y+d[1])
		if t != nil && t.Biome.Walkable() && t.OccupantID == "" {
			return actions.Action{Kind: actions.KindMove, DX: d[0], DY: d[1]}, true
		}
	}
	return actions.Action{}, false
}

// nearestResourceTile scans outward for a deposit. ResourceNone
// matches any kind.
func nearestResourceTile(c *Context, res world.Resource) *world.Tile {
	a := c.Agent
	var best *world.Tile
	bestDist := ruleScanRadius + 1
	for _, t := range c.World.Nearby(a.X, a.Y, ruleScanRadius) {
		if !t.HasResource() {
			continue
		}
		if res != world.ResourceNone && t.Resource != res {
			continue
		}
		d := world.Chebyshev(a.X, a.Y, t.X, t.Y)
		if d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

func weakestEnemy(c *Context, radius int) *agents.Agent {
	a := c.Agent
	var weakest *agents.Agent
	for _, other := range c.Registry.Alive() {
		if other.ID == a.ID || c.Alliances.AreAllied(a, other) {
			continue
		}
		if a.DistanceTo(other) > radius {
			continue
		}
		if weakest == nil || other.Health < weakest.Health {
			weakest = other
		}
	}
	return weakest
}

func nearestEnemy(c *Context, radius int) *agents.Agent {
	a := c.Agent
	var nearest *agents.Agent
	best := radius + 1
	for _, other := range c.Registry.Alive() {
		if other.ID == a.ID || c.Alliances.AreAllied(a, other) {
			continue
		}
		if d := a.DistanceTo(other); d < best {
			nearest, best = other, d
		}
	}
	return nearest
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
