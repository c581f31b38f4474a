// Simulation ties together all world systems and runs them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/brain"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/config"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

// feedKeep bounds the in-memory activity ring.
const feedKeep = 200

// FeedEntry is one line of the world activity feed.
type FeedEntry struct {
	Tick    uint64 `json:"tick"`
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	Config    config.Config
	World     *world.Map
	Registry  *agents.Registry
	Ledger    *economy.Ledger
	Market    *economy.Market
	Listings  *economy.Listings
	Alliances *social.Alliances
	Counter   *social.CounterQueue
	Executor  *actions.Executor
	Brain     *brain.Engine
	Chain     *chain.Worker
	Dice      *entropy.Dice

	// Persist is called every few ticks with the feed entries produced
	// since the last call. Set by the caller; may be nil.
	Persist func(s *Simulation, tick uint64, fresh []FeedEntry)

	// OnSnapshot receives the per-tick world snapshot for broadcast.
	OnSnapshot func(Snapshot)

	mu      sync.RWMutex
	tick    uint64
	feed    []FeedEntry
	pending []FeedEntry
	cursor  int
	deaths  int
}

// NewSimulation wires a Simulation from its components and builds the
// action executor around them.
func NewSimulation(cfg config.Config, m *world.Map, reg *agents.Registry,
	ledger *economy.Ledger, market *economy.Market, listings *economy.Listings,
	alliances *social.Alliances, dice *entropy.Dice,
	decider *brain.Engine, worker *chain.Worker) *Simulation {

	s := &Simulation{
		Config:    cfg,
		World:     m,
		Registry:  reg,
		Ledger:    ledger,
		Market:    market,
		Listings:  listings,
		Alliances: alliances,
		Counter:   social.NewCounterQueue(),
		Brain:     decider,
		Chain:     worker,
		Dice:      dice,
	}
	s.Executor = &actions.Executor{
		World:           m,
		Registry:        reg,
		Ledger:          ledger,
		Market:          market,
		Alliances:       alliances,
		Counter:         s.Counter,
		Listings:        listings,
		Dice:            dice,
		Chain:           worker,
		AttackStake:     cfg.Economy.AttackStake,
		BetrayalPenalty: cfg.Economy.BetrayalPenalty,
		Log:             s.logAction,
	}

	// Tile occupancy is not persisted, so restored agents re-stamp
	// their positions here.
	for _, a := range reg.All() {
		if !a.Alive {
			continue
		}
		if t := m.At(a.X, a.Y); t != nil && t.OccupantID == "" {
			t.OccupantID = a.ID
		}
	}
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// SetTick seeds the counter from a restored save. Call before Run.
func (s *Simulation) SetTick(tick uint64) {
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
}

// Step advances the world by one tick. Systems run in a fixed order so
// a replay from the same seed and inputs is deterministic.
func (s *Simulation) Step(ctx context.Context) {
	s.mu.Lock()
	s.tick++
	tick := s.tick
	s.mu.Unlock()

	sim := s.Config.Sim

	if tick%uint64(sim.PriceEveryTicks) == 0 {
		s.Market.Walk(s.Dice)
	}
	if tick%uint64(sim.HungerEveryTicks) == 0 {
		s.applyHunger(tick)
	}
	s.applyBuildingIncome(tick)
	if tick%uint64(sim.TowerFeeEveryTicks) == 0 {
		s.applyTowerFees(tick)
	}
	if n := s.Alliances.Expire(tick); n > 0 {
		slog.Debug("proposals expired", "tick", tick, "count", n)
	}
	s.applyIdleChecks()

	s.runDecisions(ctx, tick)
	s.drainCounterAttacks(tick)

	if tick%uint64(sim.EpochTicks) == 0 {
		s.awardEpoch(tick)
	}
	if s.Persist != nil && tick%uint64(sim.PersistEveryTicks) == 0 {
		s.mu.Lock()
		fresh := s.pending
		s.pending = nil
		s.mu.Unlock()
		s.Persist(s, tick, fresh)
	}
	if s.OnSnapshot != nil {
		s.OnSnapshot(s.Snapshot())
	}
}

// applyHunger consumes one food per agent, or bleeds health when the
// larder is empty. Starvation kills at zero health.
func (s *Simulation) applyHunger(tick uint64) {
	for _, a := range s.Registry.Alive() {
		if a.ConsumeFood() {
			continue
		}
		a.Health -= 5
		if a.Health <= 0 {
			s.killByStarvation(a, tick)
		}
	}
}

func (s *Simulation) killByStarvation(a *agents.Agent, tick uint64) {
	a.Health = 0
	a.Alive = false
	a.Deaths++

	if t := s.World.At(a.X, a.Y); t != nil && t.OccupantID == a.ID {
		t.OccupantID = ""
	}
	s.Listings.RemoveBySeller(a.ID)
	if a.AllianceID != "" {
		s.Alliances.Leave(a, s.Registry.Get)
	}

	s.mu.Lock()
	s.deaths++
	s.mu.Unlock()

	s.logAction(a.ID, actions.KindIdle, fmt.Sprintf("%s starved to death", a.Name))
	slog.Info("agent starved", "agent", a.Name, "tick", tick)
}

// applyBuildingIncome pays out passive yields. Markets earn through
// trade fees instead, so they produce nothing here.
func (s *Simulation) applyBuildingIncome(tick uint64) {
	for i := range s.World.Tiles {
		t := &s.World.Tiles[i]
		if t.Building == world.BuildingNone || t.BuildingOwner == "" {
			continue
		}
		owner := s.Registry.Get(t.BuildingOwner)
		if owner == nil || !owner.Alive {
			continue
		}
		switch t.Building {
		case world.BuildingFarm:
			owner.Inventory[world.ResourceFood] += 2
		case world.BuildingMine:
			res := world.AllResources[s.Dice.Intn(len(world.AllResources))]
			owner.Inventory[res]++
		case world.BuildingTemple:
			s.Ledger.ModifyBalance(owner, 1, economy.ReasonTempleIncome, tick)
		}
	}
}

// applyTowerFees charges every non-allied agent standing near a tower.
func (s *Simulation) applyTowerFees(tick uint64) {
	for i := range s.World.Tiles {
		t := &s.World.Tiles[i]
		if t.Building != world.BuildingTower || t.BuildingOwner == "" {
			continue
		}
		owner := s.Registry.Get(t.BuildingOwner)
		if owner == nil || !owner.Alive {
			continue
		}
		for _, a := range s.Registry.Alive() {
			if a.ID == owner.ID || s.Alliances.AreAllied(a, owner) {
				continue
			}
			if world.Chebyshev(a.X, a.Y, t.X, t.Y) > economy.TowerRadius {
				continue
			}
			s.Ledger.ChargeTowerFee(a, owner, s.Alliances, tick)
		}
	}
}

// applyIdleChecks benches platform-funded agents that cannot cover the
// brain fee, and wakes them once a top-up lands.
func (s *Simulation) applyIdleChecks() {
	fee := s.Config.Economy.BrainFeePerTick
	for _, a := range s.Registry.Alive() {
		if a.Builtin || a.WebhookURL != "" || a.LLMKey != "" {
			continue
		}
		a.Idle = a.Balance < fee
	}
}

// runDecisions asks a round-robin batch of builtin agents plus every
// active external agent for an action, then applies each in turn.
func (s *Simulation) runDecisions(ctx context.Context, tick uint64) {
	feed := s.brainFeed()

	for _, a := range s.decisionBatch() {
		allowPlatform := false
		if !a.Builtin && a.WebhookURL == "" && a.LLMKey == "" {
			// The platform pool is metered: the fee is taken before
			// the call and is not refunded on a bad reply.
			allowPlatform = s.Ledger.ChargeBrainFee(a, s.Config.Economy.BrainFeePerTick, tick) == nil
		}

		act, source := s.Brain.Decide(ctx, a, tick, feed, allowPlatform)
		res := s.Executor.Apply(a, act, tick)
		if !res.OK {
			slog.Debug("action rejected",
				"agent", a.Name, "kind", act.Kind, "source", source, "reason", res.Reason)
		}
	}
}

// decisionBatch picks this tick's deciders. Builtins rotate through a
// cursor so every one of them acts within a few ticks; externals act
// every tick while alive and not idle.
func (s *Simulation) decisionBatch() []*agents.Agent {
	var builtins, externals []*agents.Agent
	for _, a := range s.Registry.Alive() {
		if a.Idle {
			continue
		}
		if a.Builtin {
			builtins = append(builtins, a)
		} else {
			externals = append(externals, a)
		}
	}

	batch := externals
	if n := len(builtins); n > 0 {
		s.mu.Lock()
		take := s.Config.Sim.BuiltinBatch
		if take > n {
			take = n
		}
		for i := 0; i < take; i++ {
			batch = append(batch, builtins[(s.cursor+i)%n])
		}
		s.cursor = (s.cursor + take) % n
		s.mu.Unlock()
	}
	return batch
}

func (s *Simulation) drainCounterAttacks(tick uint64) {
	for _, ca := range s.Counter.Drain() {
		s.Executor.ApplyCounterAttack(ca, tick)
	}
}

// awardEpoch pays the leaderboard podium and logs the standings.
func (s *Simulation) awardEpoch(tick uint64) {
	board := s.Registry.Leaderboard()
	s.Ledger.DistributeEpochRewards(board, s.Config.Economy.LeaderboardRewards, tick)

	epoch := tick / uint64(s.Config.Sim.EpochTicks)
	for i, a := range board {
		if i >= len(s.Config.Economy.LeaderboardRewards) {
			break
		}
		s.logAction(a.ID, actions.KindIdle,
			fmt.Sprintf("%s placed #%d in epoch %d (+%d)", a.Name, i+1, epoch,
				s.Config.Economy.LeaderboardRewards[i]))
	}
	slog.Info("epoch complete", "epoch", epoch, "tick", tick, "agents", len(board))
}

// logAction records one feed entry. Wired as the executor's Log sink.
func (s *Simulation) logAction(agentID string, kind actions.Kind, message string) {
	x, y := 0, 0
	if a := s.Registry.Get(agentID); a != nil {
		x, y = a.X, a.Y
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := FeedEntry{Tick: s.tick, AgentID: agentID, Kind: string(kind), Message: message, X: x, Y: y}
	s.feed = append(s.feed, e)
	if len(s.feed) > feedKeep {
		s.feed = s.feed[len(s.feed)-feedKeep:]
	}
	s.pending = append(s.pending, e)
}

// RecentFeed returns the newest n feed entries, newest first.
func (s *Simulation) RecentFeed(n int) []FeedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.feed) {
		n = len(s.feed)
	}
	out := make([]FeedEntry, 0, n)
	for i := len(s.feed) - 1; i >= len(s.feed)-n; i-- {
		out = append(out, s.feed[i])
	}
	return out
}

// brainFeed converts recent feed entries into observation events.
func (s *Simulation) brainFeed() []brain.Event {
	recent := s.RecentFeed(feedKeep)
	events := make([]brain.Event, 0, len(recent))
	for _, e := range recent {
		events = append(events, brain.Event{Tick: e.Tick, Message: e.Message, X: e.X, Y: e.Y})
	}
	return events
}

// settleSpawn stamps a freshly registered agent onto its tile and
// grants the free starting claim when the ground is unowned.
func (s *Simulation) settleSpawn(a *agents.Agent) {
	t := s.World.At(a.X, a.Y)
	if t == nil {
		return
	}
	t.OccupantID = a.ID
	if t.OwnerID == "" {
		t.OwnerID = a.ID
		a.Territory = 1
	}
}

// SpawnBuiltins registers the platform's own agents up to the
// configured count. Safe to call on a restored world; it only fills
// the gap.
func (s *Simulation) SpawnBuiltins(tick uint64) error {
	have := 0
	for _, a := range s.Registry.All() {
		if a.Builtin {
			have++
		}
	}
	for i := have; i < s.Config.Sim.BuiltinAgents; i++ {
		x, y, ok := s.World.FindSpawn(s.Dice)
		if !ok {
			return fmt.Errorf("no walkable spawn tile found")
		}
		a, err := s.Registry.Register(agents.RegisterOpts{Builtin: true}, x, y, tick, s.Dice)
		if err != nil {
			return err
		}
		s.settleSpawn(a)
		s.Ledger.ModifyBalance(a, s.Config.Economy.PlatformAgentBalance, economy.ReasonDeploy, tick)
		s.Chain.RecordRegistration(a.ID, a.WalletAddress, tick)
		slog.Info("builtin agent spawned", "name", a.Name, "strategy", a.Strategy, "x", x, "y", y)
	}
	return nil
}

// RegisterExternal deploys a player-owned agent with the standard
// deposit, used by the registration endpoint.
func (s *Simulation) RegisterExternal(opts agents.RegisterOpts) (*agents.Agent, error) {
	x, y, ok := s.World.FindSpawn(s.Dice)
	if !ok {
		return nil, fmt.Errorf("no walkable spawn tile found")
	}
	tick := s.CurrentTick()
	a, err := s.Registry.Register(opts, x, y, tick, s.Dice)
	if err != nil {
		return nil, err
	}
	s.settleSpawn(a)
	s.Ledger.ModifyBalance(a, s.Config.Economy.DeployDeposit, economy.ReasonDeploy, tick)
	s.Chain.RecordRegistration(a.ID, a.WalletAddress, tick)
	s.logAction(a.ID, actions.KindIdle, fmt.Sprintf("%s entered the world", a.Name))
	return a, nil
}
