// Package brain is the decision engine: it builds what an agent can
// see, runs the fallback chain (webhook, own LLM key, platform pool,
// rule trees), and resolves replies into executable actions.
package brain

import (
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

const (
	// Base vision, widened by the alliance shared-vision bonus.
	tileVisionRadius  = 4
	agentVisionRadius = 5

	// Event recall window for the observation.
	eventMaxAge   = 5
	eventRadius   = 8
	eventMaxCount = 6
)

// Desperation tiers, most urgent first.
type Desperation string

const (
	DesperationCritical  Desperation = "critical"
	DesperationDesperate Desperation = "desperate"
	DesperationWorried   Desperation = "worried"
	DesperationStable    Desperation = "stable"
)

// DesperationOf classifies how dire an agent's situation is. Food and
// health interact: an empty larder makes low health critical sooner.
func DesperationOf(a *agents.Agent) Desperation {
	hp := a.HealthPct()
	food := a.FoodStock()
	switch {
	case hp <= 0.2 || (food == 0 && hp <= 0.4):
		return DesperationCritical
	case hp <= 0.4 || food == 0:
		return DesperationDesperate
	case hp <= 0.6 || food <= 2:
		return DesperationWorried
	}
	return DesperationStable
}

// Event is a recent world happening with a location, for context.
type Event struct {
	Tick    uint64 `json:"tick"`
	Message string `json:"message"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// TileView is one visible tile in the observation.
type TileView struct {
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Biome          string `json:"biome"`
	Walkable       bool   `json:"walkable"`
	Resource       string `json:"resource,omitempty"`
	ResourceAmount int    `json:"resource_amount,omitempty"`
	Building       string `json:"building,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"`
	OccupantID     string `json:"occupant_id,omitempty"`
}

// AgentView is one visible neighbor.
type AgentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Health   int    `json:"health"`
	Score    int    `json:"score"`
	Distance int    `json:"distance"`
	Allied   bool   `json:"allied"`
}

// Observation is the full decision context, serialized as-is to
// webhooks and rendered into text for LLM prompts.
type Observation struct {
	Tick         uint64                `json:"tick"`
	Self         agents.PublicView     `json:"self"`
	Desperation  Desperation           `json:"desperation"`
	Ranking      string                `json:"ranking"`
	Tiles        []TileView            `json:"tiles"`
	Agents       []AgentView           `json:"agents"`
	Market       []economy.Quote       `json:"market"`
	Memory       []agents.ActionRecord `json:"memory"`
	Events       []Event               `json:"events"`
	OpenProposal bool                  `json:"open_proposal"`
}

// Observer builds observations from live world state.
type Observer struct {
	World     *world.Map
	Registry  *agents.Registry
	Alliances *social.Alliances
	Market    *economy.Market
}

// Observe assembles what the agent can see this tick. feed is the
// recent activity trail; only fresh, nearby entries make the cut.
func (o *Observer) Observe(a *agents.Agent, tick uint64, feed []Event) Observation {
	tileRadius := tileVisionRadius
	agentRadius := agentVisionRadius
	if a.AllianceID != "" {
		tileRadius += social.VisionBonus
		agentRadius += social.VisionBonus
	}

	obs := Observation{
		Tick:         tick,
		Self:         a.Public(),
		Desperation:  DesperationOf(a),
		Ranking:      o.Registry.Ranking(a),
		Market:       o.Market.Quotes(),
		Memory:       append([]agents.ActionRecord(nil), a.Memory...),
		OpenProposal: o.Alliances.OpenProposalFor(a.ID) != nil,
	}

	for _, t := range o.World.Nearby(a.X, a.Y, tileRadius) {
		tv := TileView{
			X: t.X, Y: t.Y,
			Biome:    t.Biome.String(),
			Walkable: t.Biome.Walkable(),
			OwnerID:  t.OwnerID, OccupantID: t.OccupantID,
		}
		if t.HasResource() {
			tv.Resource = t.Resource.String()
			tv.ResourceAmount = t.ResourceAmount
		}
		if t.Building != world.BuildingNone {
			tv.Building = t.Building.String()
		}
		obs.Tiles = append(obs.Tiles, tv)
	}

	for _, other := range o.Registry.Alive() {
		if other.ID == a.ID {
			continue
		}
		dist := a.DistanceTo(other)
		if dist > agentRadius {
			continue
		}
		obs.Agents = append(obs.Agents, AgentView{
			ID: other.ID, Name: other.Name,
			X: other.X, Y: other.Y,
			Health:   other.Health,
			Score:    other.Score(),
			Distance: dist,
			Allied:   o.Alliances.AreAllied(a, other),
		})
	}

	for i := len(feed) - 1; i >= 0 && len(obs.Events) < eventMaxCount; i-- {
		ev := feed[i]
		if tick-ev.Tick > eventMaxAge {
			break
		}
		if world.Chebyshev(a.X, a.Y, ev.X, ev.Y) > eventRadius {
			continue
		}
		obs.Events = append(obs.Events, ev)
	}

	return obs
}
