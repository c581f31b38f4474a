// Command agentworld runs the autonomous agent world server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/api"
	"github.com/talgya/agent-world/internal/brain"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/config"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/engine"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/llm"
	"github.com/talgya/agent-world/internal/persistence"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.PlatformKeys = append(cfg.LLM.PlatformKeys, key)
	}
	if tok := os.Getenv("AGENTWORLD_ADMIN_TOKEN"); tok != "" {
		cfg.Server.AdminToken = tok
	}
	if cfg.Server.AdminToken == "" {
		slog.Warn("no admin token set, registration and top-up endpoints disabled")
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB.Path)

	// ── World Map (deterministic from seed) ───────────────────────────
	slog.Info("generating world map",
		"width", cfg.World.Width, "height", cfg.World.Height, "seed", cfg.World.Seed)
	worldMap := world.Generate(cfg.World.Width, cfg.World.Height, cfg.World.Seed)
	for biome, count := range world.BiomeCounts(worldMap) {
		slog.Debug("biome", "type", biome, "count", count)
	}

	// ── Core systems ──────────────────────────────────────────────────
	dice := entropy.New(cfg.World.Seed)
	registry := agents.NewRegistry()
	ledger := economy.NewLedger()
	ledger.SetRecorder(db.RecordBalance)
	market := economy.NewMarket()
	listings := economy.NewListings()
	alliances := social.NewAlliances()

	// ── Load saved state, if any ──────────────────────────────────────
	var startTick uint64
	if tickStr, err := db.GetMeta("last_tick"); err == nil && tickStr != "" {
		if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
			startTick = t
		}
	}
	if startTick > 0 {
		nAgents, err := db.LoadAgents(registry, ledger)
		if err != nil {
			slog.Error("failed to load agents", "error", err)
			os.Exit(1)
		}
		nTiles, err := db.LoadTiles(worldMap)
		if err != nil {
			slog.Error("failed to load tiles", "error", err)
			os.Exit(1)
		}
		nAlliances, err := db.LoadAlliances(alliances)
		if err != nil {
			slog.Error("failed to load alliances", "error", err)
			os.Exit(1)
		}
		if _, err := db.LoadProposals(alliances); err != nil {
			slog.Error("failed to load proposals", "error", err)
			os.Exit(1)
		}
		if _, err := db.LoadListings(listings); err != nil {
			slog.Error("failed to load listings", "error", err)
			os.Exit(1)
		}
		if err := db.LoadMarket(market); err != nil {
			slog.Error("failed to load market", "error", err)
			os.Exit(1)
		}
		slog.Info("world state restored",
			"tick", startTick, "agents", nAgents, "tiles", nTiles, "alliances", nAlliances)
	} else {
		slog.Info("no saved state found, starting a fresh world")
	}

	// ── Decision engine ───────────────────────────────────────────────
	pool := llm.NewPool(cfg.LLM.PlatformKeys, cfg.LLM.BaseURL, cfg.LLM.Model,
		time.Duration(cfg.LLM.CallTimeoutMs)*time.Millisecond,
		time.Duration(cfg.LLM.BlacklistSecs)*time.Second)
	if pool.Enabled() {
		slog.Info("platform LLM pool enabled", "keys", len(cfg.LLM.PlatformKeys))
	} else {
		slog.Warn("no platform LLM keys, platform-funded agents fall back to rules")
	}

	decider := &brain.Engine{
		World:     worldMap,
		Registry:  registry,
		Alliances: alliances,
		Market:    market,
		Dice:      dice,
		Observer: &brain.Observer{
			World:     worldMap,
			Registry:  registry,
			Alliances: alliances,
			Market:    market,
		},
		Pool:        pool,
		Webhook:     llm.NewWebhook(time.Duration(cfg.LLM.WebhookTimeoutMs) * time.Millisecond),
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		CallTimeout: time.Duration(cfg.LLM.CallTimeoutMs) * time.Millisecond,
		AttackStake: cfg.Economy.AttackStake,
	}

	// ── External ledger worker ────────────────────────────────────────
	worker := chain.New(cfg.Chain.RPCURL,
		time.Duration(cfg.Chain.TxDelayMs)*time.Millisecond,
		cfg.Chain.ClaimBatchSize, db.SaveTransaction)

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(cfg, worldMap, registry, ledger, market,
		listings, alliances, dice, decider, worker)
	sim.SetTick(startTick)
	if err := sim.SpawnBuiltins(startTick); err != nil {
		slog.Error("builtin spawn failed", "error", err)
		os.Exit(1)
	}

	sim.Persist = func(s *engine.Simulation, tick uint64, fresh []engine.FeedEntry) {
		saveWorld(db, s, tick, fresh)
	}

	hub := api.NewHub()
	sim.OnSnapshot = hub.Broadcast

	// ── HTTP API ──────────────────────────────────────────────────────
	server := &api.Server{
		Sim:        sim,
		DB:         db,
		Hub:        hub,
		Addr:       cfg.Server.Addr,
		AdminToken: cfg.Server.AdminToken,
		Limiter:    api.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst),
	}
	server.Start()

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.Run(ctx)
	go settlementLoop(ctx, sim, worker, time.Duration(cfg.Chain.SettleEveryMins)*time.Minute)

	fmt.Printf("\nAgent world is alive: %d agents on a %dx%d map.\n",
		registry.Count(), cfg.World.Width, cfg.World.Height)
	fmt.Printf("API: http://localhost%s/api/state\n", cfg.Server.Addr)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d\n", startTick)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	scheduler := &engine.Scheduler{
		Interval: time.Duration(cfg.Sim.TickIntervalMs) * time.Millisecond,
		Step:     sim.Step,
	}
	scheduler.Run(ctx)

	slog.Info("final save")
	saveWorld(db, sim, sim.CurrentTick(), nil)
	fmt.Println("Simulation stopped. World state saved.")
}

// saveWorld writes the full world state plus any fresh feed entries.
func saveWorld(db *persistence.DB, s *engine.Simulation, tick uint64, fresh []engine.FeedEntry) {
	if err := db.SaveAgents(s.Registry.All(), s.Ledger); err != nil {
		slog.Error("save agents failed", "error", err)
	}
	if err := db.SaveTiles(s.World); err != nil {
		slog.Error("save tiles failed", "error", err)
	}
	if err := db.SaveAlliances(s.Alliances.All()); err != nil {
		slog.Error("save alliances failed", "error", err)
	}
	if err := db.SaveProposals(s.Alliances.Proposals()); err != nil {
		slog.Error("save proposals failed", "error", err)
	}
	if err := db.SaveListings(s.Listings.All()); err != nil {
		slog.Error("save listings failed", "error", err)
	}
	if err := db.SaveMarket(s.Market.Quotes()); err != nil {
		slog.Error("save market failed", "error", err)
	}
	if len(fresh) > 0 {
		list := make([]persistence.Activity, 0, len(fresh))
		for _, e := range fresh {
			list = append(list, persistence.Activity{
				Tick: e.Tick, AgentID: e.AgentID, Kind: e.Kind,
				Message: e.Message, X: e.X, Y: e.Y,
			})
		}
		if err := db.SaveActivities(list); err != nil {
			slog.Error("save activities failed", "error", err)
		}
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		slog.Error("save meta failed", "error", err)
	}
}

// settlementLoop periodically records a balance snapshot to the
// external ledger queue.
func settlementLoop(ctx context.Context, sim *engine.Simulation, worker *chain.Worker, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balances := make(map[string]int)
			for _, a := range sim.Registry.Alive() {
				balances[a.ID] = a.Balance
			}
			worker.RecordSettlement(balances, sim.CurrentTick())
		}
	}
}
