// Package agents provides the agent data model, registry, and action
// memory.
package agents

import (
	"strings"

	"github.com/talgya/agent-world/internal/world"
)

// Strategy is an agent's behavioral archetype. It selects the rule list
// the decision engine falls back to and flavors the LLM persona prompt.
type Strategy string

const (
	StrategyExpansionist Strategy = "Expansionist"
	StrategyTrader       Strategy = "Trader"
	StrategyBuilder      Strategy = "Builder"
	StrategyWarrior      Strategy = "Warrior"
	StrategyHoarder      Strategy = "Hoarder"
	StrategyExplorer     Strategy = "Explorer"
	StrategyDiplomat     Strategy = "Diplomat"
	StrategyMiner        Strategy = "Miner"
	StrategyFarmer       Strategy = "Farmer"
	StrategyRaider       Strategy = "Raider"
	StrategyScholar      Strategy = "Scholar"
	StrategyMerchant     Strategy = "Merchant"
	StrategyConqueror    Strategy = "Conqueror"
	StrategyNomad        Strategy = "Nomad"
	StrategyArchitect    Strategy = "Architect"
	StrategyAlchemist    Strategy = "Alchemist"
	StrategyWarlord      Strategy = "Warlord"
	StrategySage         Strategy = "Sage"
	StrategyPirate       Strategy = "Pirate"
	StrategyOracle       Strategy = "Oracle"
)

// AllStrategies lists every archetype in a stable order.
var AllStrategies = []Strategy{
	StrategyExpansionist, StrategyTrader, StrategyBuilder, StrategyWarrior,
	StrategyHoarder, StrategyExplorer, StrategyDiplomat, StrategyMiner,
	StrategyFarmer, StrategyRaider, StrategyScholar, StrategyMerchant,
	StrategyConqueror, StrategyNomad, StrategyArchitect, StrategyAlchemist,
	StrategyWarlord, StrategySage, StrategyPirate, StrategyOracle,
}

// ParseStrategy matches an archetype name case-insensitively. Returns
// the empty strategy when nothing matches.
func ParseStrategy(name string) Strategy {
	for _, st := range AllStrategies {
		if strings.EqualFold(string(st), name) {
			return st
		}
	}
	return ""
}

// NumResources sizes the inventory array; index 0 (ResourceNone) is unused.
const NumResources = 7

// Inventory is a fixed-size array holding quantities of each resource,
// indexed by world.Resource. Inline in Agent, no per-agent map.
type Inventory [NumResources]int

// Total returns the summed quantity across all resource kinds.
func (inv Inventory) Total() int {
	sum := 0
	for _, qty := range inv {
		sum += qty
	}
	return sum
}

// Score weight per metric.
const (
	ScoreWealthWeight    = 1
	ScoreTerritoryWeight = 5
	ScoreBuildingWeight  = 10
	ScoreKillWeight      = 15
)

// Agent is one participant in the world, builtin or externally deployed.
type Agent struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Emoji    string   `json:"emoji"`
	Color    string   `json:"color"`
	Strategy Strategy `json:"strategy"`

	X int `json:"x"`
	Y int `json:"y"`

	Health    int       `json:"health"` // 0-100
	Inventory Inventory `json:"inventory"`

	// Builtin currency. All mutations go through economy.Ledger.
	Balance int `json:"balance"`

	Wealth    int `json:"wealth"`
	Kills     int `json:"kills"`
	Deaths    int `json:"deaths"`
	Territory int `json:"territory"`
	Buildings int `json:"buildings"`

	Alive bool `json:"alive"`
	// Idle agents skip decisions until their balance covers the brain
	// fee again. Only platform-LLM externals go idle.
	Idle bool `json:"idle"`

	// Builtin agents are platform-run and never pay brain fees.
	Builtin bool `json:"builtin"`

	AllianceID string `json:"alliance_id,omitempty"`

	WalletAddress string `json:"wallet_address,omitempty"`

	// Private credentials, never exposed through public views.
	APIKey     string `json:"-"`
	WebhookURL string `json:"-"`
	LLMKey     string `json:"-"`

	CreatedTick uint64 `json:"created_tick"`

	// Last actions, newest last. Feeds the repetition guard and the
	// LLM observation.
	Memory []ActionRecord `json:"-"`
}

// Score is the leaderboard metric.
func (a *Agent) Score() int {
	return a.Wealth*ScoreWealthWeight +
		a.Territory*ScoreTerritoryWeight +
		a.Buildings*ScoreBuildingWeight +
		a.Kills*ScoreKillWeight
}

// MaxHealth is the health cap for all agents.
const MaxHealth = 100

// FoodStock returns the edible reserve. Hunger draws from the same
// stock that mining FOOD tiles fills.
func (a *Agent) FoodStock() int {
	return a.Inventory[world.ResourceFood]
}

// ConsumeFood eats one unit; returns false when the cupboard is bare.
func (a *Agent) ConsumeFood() bool {
	if a.Inventory[world.ResourceFood] <= 0 {
		return false
	}
	a.Inventory[world.ResourceFood]--
	return true
}

// HealthPct returns health as a fraction of the cap.
func (a *Agent) HealthPct() float64 {
	return float64(a.Health) / float64(MaxHealth)
}

// At reports whether the agent stands on (x, y).
func (a *Agent) At(x, y int) bool {
	return a.X == x && a.Y == y
}

// DistanceTo returns the Chebyshev distance to another agent.
func (a *Agent) DistanceTo(b *Agent) int {
	return world.Chebyshev(a.X, a.Y, b.X, b.Y)
}

// PublicView is the agent as exposed over the API and in snapshots:
// no credentials, score precomputed.
type PublicView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Emoji      string    `json:"emoji"`
	Color      string    `json:"color"`
	Strategy   Strategy  `json:"strategy"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Health     int       `json:"health"`
	Food       int       `json:"food"`
	Inventory  Inventory `json:"inventory"`
	Balance    int       `json:"balance"`
	Wealth     int       `json:"wealth"`
	Kills      int       `json:"kills"`
	Deaths     int       `json:"deaths"`
	Territory  int       `json:"territory"`
	Buildings  int       `json:"buildings"`
	Alive      bool      `json:"alive"`
	Idle       bool      `json:"idle"`
	Builtin    bool      `json:"builtin"`
	AllianceID string    `json:"alliance_id,omitempty"`
	Score      int       `json:"score"`
}

// Public returns the external view of the agent.
func (a *Agent) Public() PublicView {
	return PublicView{
		ID: a.ID, Name: a.Name, Emoji: a.Emoji, Color: a.Color,
		Strategy: a.Strategy, X: a.X, Y: a.Y,
		Health: a.Health, Food: a.FoodStock(),
		Inventory: a.Inventory, Balance: a.Balance, Wealth: a.Wealth,
		Kills: a.Kills, Deaths: a.Deaths,
		Territory: a.Territory, Buildings: a.Buildings,
		Alive: a.Alive, Idle: a.Idle, Builtin: a.Builtin,
		AllianceID: a.AllianceID, Score: a.Score(),
	}
}
