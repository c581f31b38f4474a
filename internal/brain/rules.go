// Deterministic rule trees. Every strategy maps to an ordered list of
// weighted rules run by one interpreter; there is no per-strategy
// control flow anywhere else.
package brain

import (
	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

// ruleScanRadius bounds how far rules look for targets and deposits.
const ruleScanRadius = 6

// RepetitionLimit is how many identical consecutive actions trigger
// the variety override.
const RepetitionLimit = 3

// Context is everything a rule may consult.
type Context struct {
	Agent     *agents.Agent
	World     *world.Map
	Registry  *agents.Registry
	Alliances *social.Alliances
	Market    *economy.Market
	Dice      *entropy.Dice
	Tick      uint64

	// AttackStake gates combat rules for agents that cannot cover it.
	AttackStake int
}

// Rule is one weighted option: the interpreter rolls Weight, then asks
// Pick for a concrete action. Pick returns false when the option does
// not apply right now.
type Rule struct {
	Weight float64
	Pick   func(c *Context) (actions.Action, bool)
}

// strategyRules is the registry. Order within a list is priority.
var strategyRules = map[agents.Strategy][]Rule{
	agents.StrategyWarrior: {
		{0.55, attackWeakest},
		{0.40, mineHere},
		{0.60, moveTowardResourceRule(world.ResourceNone)},
	},
	agents.StrategyWarlord: {
		{0.55, attackWeakest},
		{0.45, claimBest},
		{0.50, mineHere},
	},
	agents.StrategyRaider: {
		{0.50, attackWeakest},
		{0.50, moveTowardRichest},
		{0.40, mineHere},
	},
	agents.StrategyPirate: {
		{0.50, attackWeakest},
		{0.45, tradeSurplus},
		{0.60, wander},
	},
	agents.StrategyTrader: {
		{0.50, tradeSurplus},
		{0.45, sellSurplus},
		{0.50, mineHere},
	},
	agents.StrategyMerchant: {
		{0.45, tradeSurplus},
		{0.50, sellSurplus},
		{0.40, mineHere},
	},
	agents.StrategyDiplomat: {
		{0.40, acceptOpenProposal},
		{0.40, tradeSurplus},
		{0.35, proposeAllianceNearby},
		{0.25, contributeToPact},
		{0.40, mineHere},
	},
	agents.StrategyExpansionist: {
		{0.50, claimBest},
		{0.45, mineHere},
		{0.55, wander},
	},
	agents.StrategyConqueror: {
		{0.45, claimBest},
		{0.35, attackWeakest},
		{0.40, mineHere},
	},
	agents.StrategyBuilder: {
		{0.50, buildPreferred(world.BuildingHouse, world.BuildingFarm, world.BuildingMarket)},
		{0.55, mineHere},
		{0.45, moveTowardResourceRule(world.ResourceWood)},
	},
	agents.StrategyArchitect: {
		{0.45, buildPreferred(world.BuildingTower, world.BuildingTemple, world.BuildingHouse)},
		{0.55, mineHere},
		{0.45, moveTowardResourceRule(world.ResourceStone)},
	},
	agents.StrategyMiner: {
		{0.60, mineHere},
		{0.55, moveTowardResourceRule(world.ResourceNone)},
		{0.35, sellSurplus},
	},
	agents.StrategyHoarder: {
		{0.60, mineHere},
		{0.55, moveTowardResourceRule(world.ResourceNone)},
	},
	agents.StrategyFarmer: {
		{0.60, mineFoodFirst},
		{0.45, buildPreferred(world.BuildingFarm)},
		{0.50, moveTowardResourceRule(world.ResourceFood)},
	},
	agents.StrategyExplorer: {
		{0.65, wander},
		{0.40, mineHere},
		{0.30, claimBest},
	},
	agents.StrategyNomad: {
		{0.75, wander},
		{0.35, mineHere},
	},
	agents.StrategyScholar: {
		{0.50, mineRare},
		{0.50, moveTowardRare},
		{0.35, tradeSurplus},
	},
	agents.StrategyAlchemist: {
		{0.50, mineRare},
		{0.50, moveTowardRare},
		{0.30, sellSurplus},
	},
	agents.StrategySage: {
		{1.0, adaptToStanding},
		{0.40, mineHere},
	},
	agents.StrategyOracle: {
		{1.0, adaptToStanding},
		{0.40, tradeSurplus},
	},
}

// RuleDecide runs the interpreter: desperation overrides, then the
// strategy's weighted list, then forced variety.
func RuleDecide(c *Context) actions.Action {
	if act, ok := desperationOverride(c); ok {
		return act
	}

	rules := strategyRules[c.Agent.Strategy]
	for _, r := range rules {
		if !c.Dice.Chance(r.Weight) {
			continue
		}
		act, ok := r.Pick(c)
		if !ok {
			continue
		}
		if repetitionBlocked(c.Agent, act.Kind) {
			continue
		}
		return act
	}
	return forceVariety(c)
}

// repetitionBlocked enforces the anti-rut guard: after RepetitionLimit
// identical actions, only a different category may run.
func repetitionBlocked(a *agents.Agent, kind actions.Kind) bool {
	last := a.LastAction()
	if last == nil {
		return false
	}
	if a.RepetitionCount(last.Kind) < RepetitionLimit {
		return false
	}
	return actions.Kind(last.Kind).Category() == kind.Category()
}

// desperationOverride handles survival before strategy. It bypasses
// the repetition guard: a starving agent mines food four ticks in a
// row if it must.
func desperationOverride(c *Context) (actions.Action, bool) {
	a := c.Agent
	desp := DesperationOf(a)
	if desp == DesperationStable || desp == DesperationWorried {
		return actions.Action{}, false
	}

	// Mortal danger: break contact before anything else.
	if desp == DesperationCritical {
		if enemy := nearestEnemy(c, 2); enemy != nil {
			if act, ok := fleeFrom(c, enemy); ok {
				return act, true
			}
		}
	}

	if a.FoodStock() == 0 {
		if t := c.World.At(a.X, a.Y); t != nil && t.Resource == world.ResourceFood && t.ResourceAmount > 0 {
			return actions.Action{Kind: actions.KindMine}, true
		}
		if target := nearestResourceTile(c, world.ResourceFood); target != nil {
			if act, ok := stepToward(c, target.X, target.Y); ok {
				return act, true
			}
		}
		if act, ok := tradeForFood(c); ok {
			return act, true
		}
		return wanderAlways(c), true
	}

	return actions.Action{}, false
}

// forceVariety is the interpreter's floor: produce something in a
// different category than the rut, never fail.
func forceVariety(c *Context) actions.Action {
	lastCat := "idle"
	if last := c.Agent.LastAction(); last != nil {
		lastCat = actions.Kind(last.Kind).Category()
	}
	if lastCat != "movement" {
		return wanderAlways(c)
	}
	if t := c.World.At(c.Agent.X, c.Agent.Y); t != nil && t.HasResource() {
		return actions.Action{Kind: actions.KindMine}
	}
	if act, ok := sellSurplus(c); ok {
		return act
	}
	return actions.Action{Kind: actions.KindIdle}
}
