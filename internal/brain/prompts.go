// Prompt rendering for LLM-backed decisions.
package brain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/agent-world/internal/agents"
)

// strategyPrompts flavor the persona per archetype.
var strategyPrompts = map[agents.Strategy]string{
	agents.StrategyExpansionist: "You hunger for land. Claim valuable tiles relentlessly and grow your territory.",
	agents.StrategyTrader:       "You live for the deal. Seek out partners and trade surplus for what you lack.",
	agents.StrategyBuilder:      "You create lasting works. Gather materials and raise structures on good land.",
	agents.StrategyWarrior:      "You solve problems with force. Hunt weakened rivals and take what is theirs.",
	agents.StrategyHoarder:      "You trust only your stockpile. Mine and accumulate; spend nothing you need not.",
	agents.StrategyExplorer:     "You must see what lies beyond. Keep moving toward the unknown edges of the map.",
	agents.StrategyDiplomat:     "You win through friends. Build alliances and profit from cooperation.",
	agents.StrategyMiner:        "The earth provides. Find rich deposits and work them dry.",
	agents.StrategyFarmer:       "Food is power. Control the fertile tiles and keep your stores full.",
	agents.StrategyRaider:       "Why build when you can take? Strike fast at the prosperous and vanish.",
	agents.StrategyScholar:      "Rare things teach rare lessons. Seek crystal and gold above all.",
	agents.StrategyMerchant:     "Buy low, sell high. Watch the market and time every sale.",
	agents.StrategyConqueror:    "All land is rightfully yours. Seize territory, by coin or by force.",
	agents.StrategyNomad:        "Roots are a trap. Wander far, carry little, owe nothing.",
	agents.StrategyArchitect:    "Grand designs outlive us all. Raise towers and temples worth remembering.",
	agents.StrategyAlchemist:    "Transmutation needs reagents. Hoard crystal, iron, and gold.",
	agents.StrategyWarlord:      "Strength respects strength. Dominate your region and tax the weak.",
	agents.StrategySage:         "Adapt to the moment. Read your standing and do what the situation demands.",
	agents.StrategyPirate:       "The coast is your hunting ground. Raid traders and spend the spoils.",
	agents.StrategyOracle:       "You see the turns ahead. Position yourself for what the market will become.",
}

const replyInstruction = `Reply with a single JSON object and nothing else:
{"action":"MOVE|MINE|TRADE|BUILD|CLAIM_LAND|ATTACK|PROPOSE_ALLIANCE|ACCEPT_ALLIANCE|REJECT_ALLIANCE|LEAVE_ALLIANCE|CONTRIBUTE_ALLIANCE|SELL_RESOURCE|SELL_LAND|BUY_LAND|IDLE",
 "dx":0,"dy":0,"target_id":"","resource":"","amount":0,"want_resource":"","want_amount":0,
 "building":"","x":0,"y":0,"price":0,"reason":"one short sentence"}`

// SystemPrompt is the persona header for an agent's LLM calls.
func SystemPrompt(a *agents.Agent) string {
	persona := strategyPrompts[a.Strategy]
	return fmt.Sprintf(
		"You are %s, an agent in a persistent world. Strategy: %s. %s Survive first: starving or dying loses everything.",
		a.Name, a.Strategy, persona)
}

// UserPrompt renders the observation for the model.
func UserPrompt(obs Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d. You are at (%d,%d), health %d, food %d, balance %d. Situation: %s, standing: %s.\n",
		obs.Tick, obs.Self.X, obs.Self.Y, obs.Self.Health, obs.Self.Food,
		obs.Self.Balance, obs.Desperation, obs.Ranking)

	if len(obs.Memory) > 0 {
		b.WriteString("Recent actions:")
		for _, m := range obs.Memory {
			fmt.Fprintf(&b, " %s;", m.Kind)
		}
		b.WriteString("\n")
	}
	if obs.OpenProposal {
		b.WriteString("You have an open alliance proposal waiting for an answer.\n")
	}

	raw, err := json.Marshal(struct {
		Tiles  []TileView  `json:"tiles"`
		Agents []AgentView `json:"agents"`
		Market any         `json:"market"`
		Events []Event     `json:"events"`
	}{obs.Tiles, obs.Agents, obs.Market, obs.Events})
	if err == nil {
		b.Write(raw)
		b.WriteString("\n")
	}

	b.WriteString(replyInstruction)
	return b.String()
}
