package engine

import (
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/social"
)

// snapshotFeedLen is how much of the activity ring rides in a snapshot.
const snapshotFeedLen = 20

// Snapshot is the per-tick world state pushed to websocket clients and
// served from /api/state.
type Snapshot struct {
	Tick       uint64              `json:"tick"`
	Epoch      uint64              `json:"epoch"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	AgentCount int                 `json:"agent_count"`
	AliveCount int                 `json:"alive_count"`
	Agents     []agents.PublicView `json:"agents"`
	Market     []economy.Quote     `json:"market"`
	Activities []FeedEntry         `json:"activities"`
	Alliances  []*social.Alliance  `json:"alliances"`
	Chain      chain.Stats         `json:"chain"`
	Treasury   int                 `json:"treasury"`
	Burned     int                 `json:"burned"`
}

// Snapshot assembles the current world view.
func (s *Simulation) Snapshot() Snapshot {
	all := s.Registry.All()
	views := make([]agents.PublicView, 0, len(all))
	alive := 0
	for _, a := range all {
		if a.Alive {
			alive++
		}
		views = append(views, a.Public())
	}

	treasury, burned := s.Ledger.Totals()

	return Snapshot{
		Tick:       s.CurrentTick(),
		Epoch:      s.CurrentTick() / uint64(s.Config.Sim.EpochTicks),
		Width:      s.World.Width,
		Height:     s.World.Height,
		AgentCount: len(all),
		AliveCount: alive,
		Agents:     views,
		Market:     s.Market.Quotes(),
		Activities: s.RecentFeed(snapshotFeedLen),
		Alliances:  s.Alliances.All(),
		Chain:      s.Chain.StatsSnapshot(),
		Treasury:   treasury,
		Burned:     burned,
	}
}
