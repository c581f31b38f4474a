// Cost tables and the charge operations built on the ledger. Anything
// that prices an action lives here so gameplay code never touches
// balances directly.
package economy

import (
	"math"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

const (
	// LandClaimBaseCost scales by biome desirability, capped below.
	LandClaimBaseCost = 5
	LandClaimMaxCost  = 50
	// ContestedClaimMultiplier doubles the price of a hostile takeover.
	ContestedClaimMultiplier = 2

	// TerritoryTaxPct of a mined haul's value goes to the tile owner.
	TerritoryTaxPct = 0.20
	// MarketFeePct is skimmed on trades near a MARKET building.
	MarketFeePct = 0.05
	// BuildingBurnPct of a build's currency cost is destroyed; the rest
	// funds the platform treasury.
	BuildingBurnPct = 0.5
	// KillLootPct of the victim's balance and inventory goes to the
	// killer.
	KillLootPct = 0.5

	// TowerFee is collected per non-allied agent inside TowerRadius.
	TowerFee    = 1
	TowerRadius = 2
	// MarketRadius is how far a MARKET collects trade fees.
	MarketRadius = 3
)

// BuildCost is the full price of a structure.
type BuildCost struct {
	Currency  int
	Resources map[world.Resource]int
}

var buildCosts = map[world.Building]BuildCost{
	world.BuildingHouse: {Currency: 10, Resources: map[world.Resource]int{
		world.ResourceWood: 5, world.ResourceStone: 3}},
	world.BuildingFarm: {Currency: 15, Resources: map[world.Resource]int{
		world.ResourceWood: 3, world.ResourceFood: 2}},
	world.BuildingMine: {Currency: 20, Resources: map[world.Resource]int{
		world.ResourceWood: 4, world.ResourceIron: 2}},
	world.BuildingTower: {Currency: 30, Resources: map[world.Resource]int{
		world.ResourceStone: 8, world.ResourceIron: 4}},
	world.BuildingMarket: {Currency: 40, Resources: map[world.Resource]int{
		world.ResourceWood: 6, world.ResourceGold: 3}},
	world.BuildingTemple: {Currency: 100, Resources: map[world.Resource]int{
		world.ResourceStone: 10, world.ResourceCrystal: 5, world.ResourceGold: 5}},
}

// CostOf returns the build cost for a structure kind.
func CostOf(b world.Building) (BuildCost, bool) {
	c, ok := buildCosts[b]
	return c, ok
}

// LandClaimCost prices an unowned tile by biome.
func LandClaimCost(b world.Biome) int {
	cost := int(math.Round(LandClaimBaseCost * b.Desirability()))
	if cost > LandClaimMaxCost {
		cost = LandClaimMaxCost
	}
	if cost < 1 {
		cost = 1
	}
	return cost
}

// ChargeBrainFee debits the per-tick platform LLM fee. Failure means
// the agent goes idle; it never runs a negative balance.
func (l *Ledger) ChargeBrainFee(a *agents.Agent, fee int, tick uint64) error {
	return l.ModifyBalance(a, -fee, ReasonBrainFee, tick)
}

// ChargeLandClaim debits a claim. The caller passes the final cost
// (contested claims pay double even when the takeover fails).
func (l *Ledger) ChargeLandClaim(a *agents.Agent, cost int, tick uint64) error {
	return l.ModifyBalance(a, -cost, ReasonLandClaim, tick)
}

// ChargeBuildCost debits the currency half of a build and splits it
// between the burn and the treasury.
func (l *Ledger) ChargeBuildCost(a *agents.Agent, cost BuildCost, tick uint64) error {
	if err := l.ModifyBalance(a, -cost.Currency, ReasonBuild, tick); err != nil {
		return err
	}
	burn := int(math.Floor(float64(cost.Currency) * BuildingBurnPct))
	l.mu.Lock()
	l.Burned += burn
	l.Treasury += cost.Currency - burn
	l.mu.Unlock()
	return nil
}

// StakeAttack escrows the attack stake.
func (l *Ledger) StakeAttack(a *agents.Agent, stake int, tick uint64) error {
	return l.ModifyBalance(a, -stake, ReasonAttackStake, tick)
}

// ReturnStake pays the stake back to a winning attacker.
func (l *Ledger) ReturnStake(a *agents.Agent, stake int, tick uint64) {
	_ = l.ModifyBalance(a, stake, ReasonStakeReturn, tick)
}

// AwardStake hands the escrowed stake to the surviving defender.
func (l *Ledger) AwardStake(defender *agents.Agent, stake int, tick uint64) {
	_ = l.ModifyBalance(defender, stake, ReasonStakeWon, tick)
}

// LootBalance moves the kill share of the victim's balance to the
// killer and returns the amount taken.
func (l *Ledger) LootBalance(killer, victim *agents.Agent, tick uint64) int {
	loot := int(math.Floor(float64(victim.Balance) * KillLootPct))
	if loot <= 0 {
		return 0
	}
	if err := l.Transfer(victim, killer, loot, ReasonLooted, ReasonLoot, tick); err != nil {
		return 0
	}
	return loot
}

// ChargeTerritoryTax taxes a mined haul's market value for the tile
// owner. Skipped entirely when the miner cannot cover it. Returns the
// tax collected.
func (l *Ledger) ChargeTerritoryTax(miner, owner *agents.Agent, haulValue int, alliances *social.Alliances, tick uint64) int {
	tax := int(math.Floor(float64(haulValue) * TerritoryTaxPct))
	if tax <= 0 || miner.Balance < tax {
		return 0
	}
	if err := l.Transfer(miner, owner, tax, ReasonTerritoryTax, ReasonTerritoryIncome, tick); err != nil {
		return 0
	}
	l.ChargeAllianceTax(owner, tax, alliances, tick)
	return tax
}

// ChargeTowerFee collects a tower's protection fee from one bystander.
// Broke agents are skipped, never indebted.
func (l *Ledger) ChargeTowerFee(payer, towerOwner *agents.Agent, alliances *social.Alliances, tick uint64) bool {
	if payer.Balance < TowerFee {
		return false
	}
	if err := l.Transfer(payer, towerOwner, TowerFee, ReasonTowerFee, ReasonTowerIncome, tick); err != nil {
		return false
	}
	l.ChargeAllianceTax(towerOwner, TowerFee, alliances, tick)
	return true
}

// ChargeMarketFee skims a trade's value for the nearest market owner.
// Returns the fee collected.
func (l *Ledger) ChargeMarketFee(trader, marketOwner *agents.Agent, tradeValue int, alliances *social.Alliances, tick uint64) int {
	fee := int(math.Floor(float64(tradeValue) * MarketFeePct))
	if fee <= 0 || trader.Balance < fee {
		return 0
	}
	if trader.ID == marketOwner.ID {
		return 0
	}
	if err := l.Transfer(trader, marketOwner, fee, ReasonMarketFee, ReasonMarketIncome, tick); err != nil {
		return 0
	}
	l.ChargeAllianceTax(marketOwner, fee, alliances, tick)
	return fee
}

// ChargeAllianceTax skims allied members' income into the pact
// treasury. No-op for unallied agents or incomes too small to tax.
func (l *Ledger) ChargeAllianceTax(earner *agents.Agent, income int, alliances *social.Alliances, tick uint64) int {
	if earner.AllianceID == "" || alliances == nil {
		return 0
	}
	al := alliances.Get(earner.AllianceID)
	if al == nil {
		return 0
	}
	tax := int(math.Floor(float64(income) * social.IncomeTaxPct))
	if tax <= 0 || earner.Balance < tax {
		return 0
	}
	if err := l.ModifyBalance(earner, -tax, ReasonAllianceTax, tick); err != nil {
		return 0
	}
	al.Treasury += tax
	return tax
}

// PenalizeBetrayal fines an agent for attacking an ally, paying
// whatever it can cover into the pact treasury.
func (l *Ledger) PenalizeBetrayal(traitor *agents.Agent, al *social.Alliance, penalty int, tick uint64) int {
	if penalty > traitor.Balance {
		penalty = traitor.Balance
	}
	if penalty <= 0 {
		return 0
	}
	if err := l.ModifyBalance(traitor, -penalty, ReasonBetrayal, tick); err != nil {
		return 0
	}
	al.Treasury += penalty
	return penalty
}

// ContributeToAlliance moves a voluntary donation from a member's
// balance into the pact treasury.
func (l *Ledger) ContributeToAlliance(member *agents.Agent, al *social.Alliance, amount int, tick uint64) error {
	if err := l.ModifyBalance(member, -amount, ReasonContribution, tick); err != nil {
		return err
	}
	al.Treasury += amount
	return nil
}

// DistributeEpochRewards pays the leaderboard podium.
func (l *Ledger) DistributeEpochRewards(board []*agents.Agent, rewards []int, tick uint64) {
	for i, reward := range rewards {
		if i >= len(board) {
			break
		}
		_ = l.ModifyBalance(board[i], reward, ReasonEpochReward, tick)
	}
}
