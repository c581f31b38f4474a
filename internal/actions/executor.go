// The executor applies a decided action against the world, the ledger,
// and the alliance state. All gameplay mutation funnels through here so
// the tick loop stays a thin orchestrator.
package actions

import (
	"fmt"
	"math"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

const (
	// TradeRange bounds partner distance, Chebyshev.
	TradeRange = 5
	// AttackRange bounds direct attacks, Chebyshev.
	AttackRange = 2
	// CounterAttackRange re-checks retaliation reach, Chebyshev.
	CounterAttackRange = 3
	// ClaimRange lets an agent claim its own or an adjacent tile.
	ClaimRange = 1

	attackDamageMin  = 5
	attackDamageMax  = 20
	counterDamageMin = 5
	counterDamageMax = 15
	mineAmountMin    = 1
	mineAmountMax    = 3

	// ContestedClaimChance is the takeover success rate on owned land.
	ContestedClaimChance = 0.40

	buildWealthBonus = 10
)

// ChainRecorder receives settled gameplay events for the external
// ledger worker. Nil disables recording.
type ChainRecorder interface {
	RecordClaim(agentID string, x, y int, tick uint64)
	RecordTrade(fromID, toID string, value int, tick uint64)
	RecordBuild(agentID string, building string, tick uint64)
}

// Executor carries the dependencies actions need.
type Executor struct {
	World     *world.Map
	Registry  *agents.Registry
	Ledger    *economy.Ledger
	Market    *economy.Market
	Alliances *social.Alliances
	Counter   *social.CounterQueue
	Listings  *economy.Listings
	Dice      *entropy.Dice
	Chain     ChainRecorder

	// AttackStake and BetrayalPenalty come from config.
	AttackStake     int
	BetrayalPenalty int

	// Activity sink for the feed and snapshots. Never nil after New.
	Log func(agentID string, kind Kind, message string)
}

// Apply executes one action for an agent and records it in the agent's
// memory trail.
func (e *Executor) Apply(a *agents.Agent, act Action, tick uint64) Result {
	if !a.Alive {
		return fail(act.Kind, "agent is dead")
	}

	var res Result
	switch act.Kind {
	case KindMove:
		res = e.move(a, act)
	case KindMine:
		res = e.mine(a, tick)
	case KindTrade:
		res = e.trade(a, act, tick)
	case KindBuild:
		res = e.build(a, act, tick)
	case KindClaim:
		res = e.claim(a, act, tick)
	case KindAttack:
		res = e.attack(a, act, tick)
	case KindProposeAlliance:
		res = e.propose(a, act, tick)
	case KindAcceptAlliance:
		res = e.acceptAlliance(a, tick)
	case KindRejectAlliance:
		res = e.rejectAlliance(a)
	case KindLeaveAlliance:
		res = e.leaveAlliance(a)
	case KindContribute:
		res = e.contribute(a, act, tick)
	case KindSell:
		res = e.sell(a, act, tick)
	case KindSellLand:
		res = e.sellLand(a, act, tick)
	case KindBuyLand:
		res = e.buyLand(a, act, tick)
	case KindIdle:
		res = ok(KindIdle, "waited")
	default:
		res = fail(act.Kind, "unknown action")
	}

	a.Remember(tick, string(act.Kind), res.Detail)
	if res.OK {
		e.Log(a.ID, act.Kind, fmt.Sprintf("%s %s", a.Name, res.Detail))
	} else if act.Kind != KindIdle {
		e.Log(a.ID, act.Kind, fmt.Sprintf("%s failed to %s (%s)", a.Name, act.Kind, res.Reason))
	}
	return res
}

func (e *Executor) move(a *agents.Agent, act Action) Result {
	dx, dy := clampStep(act.DX), clampStep(act.DY)
	if dx == 0 && dy == 0 {
		return fail(KindMove, "no direction")
	}
	nx, ny := a.X+dx, a.Y+dy
	dest := e.World.At(nx, ny)
	if dest == nil {
		return fail(KindMove, "out of bounds")
	}
	if !dest.Biome.Walkable() {
		return fail(KindMove, "cannot enter water")
	}
	if dest.OccupantID != "" && dest.OccupantID != a.ID {
		return fail(KindMove, "tile occupied")
	}
	if cur := e.World.At(a.X, a.Y); cur != nil && cur.OccupantID == a.ID {
		cur.OccupantID = ""
	}
	a.X, a.Y = nx, ny
	dest.OccupantID = a.ID
	return ok(KindMove, fmt.Sprintf("moved to (%d,%d)", nx, ny))
}

func (e *Executor) mine(a *agents.Agent, tick uint64) Result {
	t := e.World.At(a.X, a.Y)
	if t == nil || !t.HasResource() {
		return fail(KindMine, "nothing to mine here")
	}
	amount := e.Dice.Range(mineAmountMin, mineAmountMax)
	if amount > t.ResourceAmount {
		amount = t.ResourceAmount
	}
	res := t.Resource
	t.ResourceAmount -= amount
	if t.ResourceAmount <= 0 {
		t.Resource = world.ResourceNone
		t.ResourceAmount = 0
	}
	a.Inventory[res] += amount

	value := e.Market.SaleValue(res, amount)
	a.Wealth += value

	taxed := 0
	if t.OwnerID != "" && t.OwnerID != a.ID {
		if owner := e.Registry.Get(t.OwnerID); owner != nil && owner.Alive {
			taxed = e.Ledger.ChargeTerritoryTax(a, owner, value, e.Alliances, tick)
		}
	}

	detail := fmt.Sprintf("mined %d %s", amount, res)
	if taxed > 0 {
		detail += fmt.Sprintf(" (paid %d territory tax)", taxed)
	}
	return ok(KindMine, detail)
}

func (e *Executor) trade(a *agents.Agent, act Action, tick uint64) Result {
	target := e.Registry.Get(act.TargetID)
	if target == nil || !target.Alive {
		return fail(KindTrade, "no such trading partner")
	}
	if a.DistanceTo(target) > TradeRange {
		return fail(KindTrade, "partner out of range")
	}
	if act.Resource == world.ResourceNone || act.WantResource == world.ResourceNone {
		return fail(KindTrade, "trade needs both sides")
	}
	give, want := clampTradeAmount(act.Amount), clampTradeAmount(act.WantAmount)
	if a.Inventory[act.Resource] < give {
		return fail(KindTrade, "not enough to offer")
	}
	if target.Inventory[act.WantResource] < want {
		return fail(KindTrade, "partner cannot cover the ask")
	}

	a.Inventory[act.Resource] -= give
	target.Inventory[act.Resource] += give
	target.Inventory[act.WantResource] -= want
	a.Inventory[act.WantResource] += want

	bonusNote := ""
	if e.Alliances.AreAllied(a, target) {
		bonus := allianceTradeBonus(give)
		a.Inventory[act.WantResource] += bonus
		target.Inventory[act.Resource] += bonus
		bonusNote = fmt.Sprintf(", ally bonus %d", bonus)
	}

	value := e.Market.SaleValue(act.Resource, give)
	if owner := e.nearestMarketOwner(a); owner != nil {
		e.Ledger.ChargeMarketFee(a, owner, value, e.Alliances, tick)
	}
	if e.Chain != nil {
		e.Chain.RecordTrade(a.ID, target.ID, value, tick)
	}
	return ok(KindTrade, fmt.Sprintf("traded %d %s for %d %s with %s%s",
		give, act.Resource, want, act.WantResource, target.Name, bonusNote))
}

func (e *Executor) build(a *agents.Agent, act Action, tick uint64) Result {
	if act.Building == world.BuildingNone {
		return fail(KindBuild, "no building chosen")
	}
	t := e.World.At(a.X, a.Y)
	if t == nil || !t.Biome.Walkable() {
		return fail(KindBuild, "cannot build here")
	}
	if t.Building != world.BuildingNone {
		return fail(KindBuild, "tile already has a building")
	}
	cost, okCost := economy.CostOf(act.Building)
	if !okCost {
		return fail(KindBuild, "unknown building")
	}
	for res, qty := range cost.Resources {
		if a.Inventory[res] < qty {
			return fail(KindBuild, fmt.Sprintf("missing %s", res))
		}
	}
	if err := e.Ledger.ChargeBuildCost(a, cost, tick); err != nil {
		return fail(KindBuild, "insufficient funds")
	}
	for res, qty := range cost.Resources {
		a.Inventory[res] -= qty
	}
	t.Building = act.Building
	t.BuildingOwner = a.ID
	if t.OwnerID == "" {
		t.OwnerID = a.ID
		a.Territory++
	}
	a.Buildings++
	a.Wealth += buildWealthBonus
	if e.Chain != nil {
		e.Chain.RecordBuild(a.ID, act.Building.String(), tick)
	}
	return ok(KindBuild, fmt.Sprintf("built a %s at (%d,%d)", act.Building, t.X, t.Y))
}

func (e *Executor) claim(a *agents.Agent, act Action, tick uint64) Result {
	x, y := act.X, act.Y
	if x == 0 && y == 0 {
		x, y = a.X, a.Y
	}
	if world.Chebyshev(a.X, a.Y, x, y) > ClaimRange {
		return fail(KindClaim, "tile out of reach")
	}
	t := e.World.At(x, y)
	if t == nil || !t.Biome.Walkable() {
		return fail(KindClaim, "cannot claim water")
	}
	if t.OwnerID == a.ID {
		return fail(KindClaim, "already yours")
	}

	cost := economy.LandClaimCost(t.Biome)
	defender := e.Registry.Get(t.OwnerID)
	contested := defender != nil && defender.Alive
	if contested {
		cost *= economy.ContestedClaimMultiplier
	}
	// Contested claims pay up front, win or lose.
	if err := e.Ledger.ChargeLandClaim(a, cost, tick); err != nil {
		return fail(KindClaim, "insufficient funds")
	}
	if contested && !e.Dice.Chance(ContestedClaimChance) {
		return fail(KindClaim, fmt.Sprintf("takeover of (%d,%d) failed", x, y))
	}
	if contested {
		defender.Territory--
		if defender.Territory < 0 {
			defender.Territory = 0
		}
	}
	t.OwnerID = a.ID
	a.Territory++
	if e.Chain != nil {
		e.Chain.RecordClaim(a.ID, x, y, tick)
	}
	verb := "claimed"
	if contested {
		verb = "seized"
	}
	return ok(KindClaim, fmt.Sprintf("%s (%d,%d) for %d", verb, x, y, cost))
}

func (e *Executor) attack(a *agents.Agent, act Action, tick uint64) Result {
	target := e.Registry.Get(act.TargetID)
	if target == nil || !target.Alive || target.ID == a.ID {
		return fail(KindAttack, "no such target")
	}
	if a.DistanceTo(target) > AttackRange {
		return fail(KindAttack, "target out of range")
	}

	// Striking an ally is betrayal: fine and expulsion, no damage dealt.
	if e.Alliances.AreAllied(a, target) {
		al := e.Alliances.Get(a.AllianceID)
		paid := e.Ledger.PenalizeBetrayal(a, al, e.BetrayalPenalty, tick)
		_ = e.Alliances.Expel(a, e.Registry.Get)
		return ok(KindAttack, fmt.Sprintf("betrayed %s and was expelled (fined %d)", target.Name, paid))
	}

	if err := e.Ledger.StakeAttack(a, e.AttackStake, tick); err != nil {
		return fail(KindAttack, "cannot cover the attack stake")
	}

	dmg := e.Dice.Range(attackDamageMin, attackDamageMax)
	target.Health -= dmg
	if target.Health <= 0 {
		loot := e.resolveKill(a, target, tick)
		e.Ledger.ReturnStake(a, e.AttackStake, tick)
		return ok(KindAttack, fmt.Sprintf("killed %s (looted %d)", target.Name, loot))
	}

	// Defender survives: the stake is theirs, and nearby allies answer.
	e.Ledger.AwardStake(target, e.AttackStake, tick)
	for _, ally := range e.Alliances.AlliesOf(target, e.Registry.Get) {
		if world.Manhattan(ally.X, ally.Y, target.X, target.Y) <= social.CounterAttackRadius {
			e.Counter.Enqueue(social.CounterAttack{AvengerID: ally.ID, TargetID: a.ID, Tick: tick})
		}
	}
	return ok(KindAttack, fmt.Sprintf("hit %s for %d", target.Name, dmg))
}

// ApplyCounterAttack resolves one queued retaliation. Eligibility is
// re-checked at drain time; stale entries just fizzle.
func (e *Executor) ApplyCounterAttack(ca social.CounterAttack, tick uint64) Result {
	avenger := e.Registry.Get(ca.AvengerID)
	target := e.Registry.Get(ca.TargetID)
	if avenger == nil || target == nil || !avenger.Alive || !target.Alive || avenger.Idle {
		return fail(KindAttack, "counter-attack no longer applies")
	}
	if avenger.DistanceTo(target) > CounterAttackRange {
		return fail(KindAttack, "counter-attack target out of reach")
	}
	dmg := e.Dice.Range(counterDamageMin, counterDamageMax)
	target.Health -= dmg
	detail := fmt.Sprintf("%s counter-attacked %s for %d", avenger.Name, target.Name, dmg)
	if target.Health <= 0 {
		loot := e.resolveKill(avenger, target, tick)
		detail = fmt.Sprintf("%s avenged an ally, killing %s (looted %d)", avenger.Name, target.Name, loot)
	}
	e.Log(avenger.ID, KindAttack, detail)
	avenger.Remember(tick, string(KindAttack), detail)
	return ok(KindAttack, detail)
}

// resolveKill settles a death: loot, wealth transfer, board-keeping.
func (e *Executor) resolveKill(killer, victim *agents.Agent, tick uint64) int {
	victim.Health = 0
	victim.Alive = false
	victim.Deaths++
	killer.Kills++

	loot := e.Ledger.LootBalance(killer, victim, tick)
	for _, res := range world.AllResources {
		take := victim.Inventory[res] / 2
		victim.Inventory[res] -= take
		killer.Inventory[res] += take
	}
	killer.Wealth += victim.Wealth / 2

	if t := e.World.At(victim.X, victim.Y); t != nil && t.OccupantID == victim.ID {
		t.OccupantID = ""
	}
	e.Listings.RemoveBySeller(victim.ID)
	if victim.AllianceID != "" {
		_ = e.Alliances.Leave(victim, e.Registry.Get)
	}
	return loot
}

func (e *Executor) propose(a *agents.Agent, act Action, tick uint64) Result {
	target := e.Registry.Get(act.TargetID)
	if target == nil || !target.Alive || target.ID == a.ID {
		return fail(KindProposeAlliance, "no such agent")
	}
	if _, err := e.Alliances.Propose(a, target, tick); err != nil {
		return fail(KindProposeAlliance, err.Error())
	}
	return ok(KindProposeAlliance, fmt.Sprintf("proposed an alliance to %s", target.Name))
}

func (e *Executor) acceptAlliance(a *agents.Agent, tick uint64) Result {
	p := e.Alliances.OpenProposalFor(a.ID)
	if p == nil {
		return fail(KindAcceptAlliance, "no open proposal")
	}
	from := e.Registry.Get(p.FromID)
	if from == nil || !from.Alive {
		_ = e.Alliances.Reject(p)
		return fail(KindAcceptAlliance, "proposer is gone")
	}
	al, err := e.Alliances.Accept(p, from, a, e.Registry.Get, tick)
	if err != nil {
		return fail(KindAcceptAlliance, err.Error())
	}
	return ok(KindAcceptAlliance, fmt.Sprintf("joined %s", al.Name))
}

func (e *Executor) rejectAlliance(a *agents.Agent) Result {
	p := e.Alliances.OpenProposalFor(a.ID)
	if p == nil {
		return fail(KindRejectAlliance, "no open proposal")
	}
	_ = e.Alliances.Reject(p)
	return ok(KindRejectAlliance, "declined an alliance offer")
}

func (e *Executor) leaveAlliance(a *agents.Agent) Result {
	if err := e.Alliances.Leave(a, e.Registry.Get); err != nil {
		return fail(KindLeaveAlliance, err.Error())
	}
	return ok(KindLeaveAlliance, "left the alliance")
}

func (e *Executor) contribute(a *agents.Agent, act Action, tick uint64) Result {
	al := e.Alliances.Get(a.AllianceID)
	if al == nil {
		return fail(KindContribute, "not in an alliance")
	}
	if act.Amount <= 0 {
		return fail(KindContribute, "nothing to contribute")
	}
	if err := e.Ledger.ContributeToAlliance(a, al, act.Amount, tick); err != nil {
		return fail(KindContribute, "insufficient funds")
	}
	return ok(KindContribute, fmt.Sprintf("contributed %d to %s", act.Amount, al.Name))
}

func (e *Executor) sell(a *agents.Agent, act Action, tick uint64) Result {
	if act.Resource == world.ResourceNone || act.Amount <= 0 {
		return fail(KindSell, "nothing to sell")
	}
	if a.Inventory[act.Resource] < act.Amount {
		return fail(KindSell, "not enough inventory")
	}
	proceeds := e.Market.SaleValue(act.Resource, act.Amount)
	a.Inventory[act.Resource] -= act.Amount
	_ = e.Ledger.ModifyBalance(a, proceeds, economy.ReasonSellResource, tick)
	e.Ledger.ChargeAllianceTax(a, proceeds, e.Alliances, tick)
	return ok(KindSell, fmt.Sprintf("sold %d %s for %d", act.Amount, act.Resource, proceeds))
}

func (e *Executor) sellLand(a *agents.Agent, act Action, tick uint64) Result {
	x, y := act.X, act.Y
	if x == 0 && y == 0 {
		x, y = a.X, a.Y
	}
	t := e.World.At(x, y)
	if t == nil || t.OwnerID != a.ID {
		return fail(KindSellLand, "not your land")
	}
	price := act.Price
	if price <= 0 {
		price = economy.LandClaimCost(t.Biome) * 2
	}
	e.Listings.List(x, y, a.ID, price, tick)
	return ok(KindSellLand, fmt.Sprintf("listed (%d,%d) for %d", x, y, price))
}

func (e *Executor) buyLand(a *agents.Agent, act Action, tick uint64) Result {
	l := e.Listings.At(act.X, act.Y)
	if l == nil {
		return fail(KindBuyLand, "no listing for that tile")
	}
	seller := e.Registry.Get(l.SellerID)
	t := e.World.At(l.X, l.Y)
	if seller == nil || t == nil || t.OwnerID != seller.ID {
		e.Listings.Remove(l.ID)
		return fail(KindBuyLand, "listing is stale")
	}
	if err := e.Ledger.Transfer(a, seller, l.Price, economy.ReasonBuyLand, economy.ReasonSellLand, tick); err != nil {
		return fail(KindBuyLand, "insufficient funds")
	}
	t.OwnerID = a.ID
	a.Territory++
	seller.Territory--
	if seller.Territory < 0 {
		seller.Territory = 0
	}
	e.Listings.Remove(l.ID)
	return ok(KindBuyLand, fmt.Sprintf("bought (%d,%d) from %s for %d", l.X, l.Y, seller.Name, l.Price))
}

// nearestMarketOwner finds the owner of a MARKET within fee radius of
// the agent, if any.
func (e *Executor) nearestMarketOwner(a *agents.Agent) *agents.Agent {
	for _, t := range e.World.Nearby(a.X, a.Y, economy.MarketRadius) {
		if t.Building != world.BuildingMarket || t.BuildingOwner == "" {
			continue
		}
		if owner := e.Registry.Get(t.BuildingOwner); owner != nil && owner.Alive {
			return owner
		}
	}
	return nil
}

func clampStep(d int) int {
	if d > 1 {
		return 1
	}
	if d < -1 {
		return -1
	}
	return d
}

// clampTradeAmount bounds a trade leg to 1..5 units.
func clampTradeAmount(n int) int {
	return int(math.Min(5, math.Max(1, float64(n))))
}

// allianceTradeBonus is the extra goods both allied parties receive.
func allianceTradeBonus(amount int) int {
	bonus := int(math.Floor(float64(amount) * social.TradeBonusPct))
	if bonus < 1 {
		bonus = 1
	}
	return bonus
}
