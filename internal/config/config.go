// Package config holds the runtime tunables for the simulation server.
// Domain tables (building costs, biome affinities, base prices) live in
// their own packages; this file covers only what operators change.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration, loaded from YAML with
// Default() values filled in for anything the file omits.
type Config struct {
	Server  Server  `yaml:"server"`
	World   World   `yaml:"world"`
	Sim     Sim     `yaml:"sim"`
	Economy Economy `yaml:"economy"`
	LLM     LLM     `yaml:"llm"`
	Chain   Chain   `yaml:"chain"`
	DB      DB      `yaml:"db"`
}

type Server struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"admin_token"`
	// Token bucket per client IP on public endpoints.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

type World struct {
	Width  int   `yaml:"width"`
	Height int   `yaml:"height"`
	Seed   int64 `yaml:"seed"`
}

type Sim struct {
	TickIntervalMs     int `yaml:"tick_interval_ms"`
	EpochTicks         int `yaml:"epoch_ticks"`
	HungerEveryTicks   int `yaml:"hunger_every_ticks"`
	TowerFeeEveryTicks int `yaml:"tower_fee_every_ticks"`
	PriceEveryTicks    int `yaml:"price_every_ticks"`
	PersistEveryTicks  int `yaml:"persist_every_ticks"`
	// Builtin agents decided per tick, round-robin. External agents are
	// always included while active.
	BuiltinBatch  int `yaml:"builtin_batch"`
	BuiltinAgents int `yaml:"builtin_agents"`
}

type Economy struct {
	DeployDeposit        int   `yaml:"deploy_deposit"`
	PlatformAgentBalance int   `yaml:"platform_agent_balance"`
	BrainFeePerTick      int   `yaml:"brain_fee_per_tick"`
	AttackStake          int   `yaml:"attack_stake"`
	BetrayalPenalty      int   `yaml:"betrayal_penalty"`
	LeaderboardRewards   []int `yaml:"leaderboard_rewards"`
}

type LLM struct {
	PlatformKeys     []string `yaml:"platform_keys"`
	Model            string   `yaml:"model"`
	BaseURL          string   `yaml:"base_url"`
	WebhookTimeoutMs int      `yaml:"webhook_timeout_ms"`
	CallTimeoutMs    int      `yaml:"call_timeout_ms"`
	BlacklistSecs    int      `yaml:"blacklist_secs"`
}

type Chain struct {
	RPCURL          string `yaml:"rpc_url"`
	TxDelayMs       int    `yaml:"tx_delay_ms"`
	SettleEveryMins int    `yaml:"settle_every_mins"`
	ClaimBatchSize  int    `yaml:"claim_batch_size"`
}

type DB struct {
	Path string `yaml:"path"`
}

// Default returns the stock configuration the server runs with when no
// file is supplied.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			RateLimitPerSec: 10,
			RateLimitBurst:  30,
		},
		World: World{
			Width:  80,
			Height: 55,
			Seed:   42,
		},
		Sim: Sim{
			TickIntervalMs:     5000,
			EpochTicks:         100,
			HungerEveryTicks:   5,
			TowerFeeEveryTicks: 3,
			PriceEveryTicks:    10,
			PersistEveryTicks:  5,
			BuiltinBatch:       3,
			BuiltinAgents:      8,
		},
		Economy: Economy{
			DeployDeposit:        100,
			PlatformAgentBalance: 500,
			BrainFeePerTick:      1,
			AttackStake:          20,
			BetrayalPenalty:      50,
			LeaderboardRewards:   []int{50, 30, 15},
		},
		LLM: LLM{
			WebhookTimeoutMs: 5000,
			CallTimeoutMs:    15000,
			BlacklistSecs:    60,
		},
		Chain: Chain{
			TxDelayMs:       200,
			SettleEveryMins: 10,
			ClaimBatchSize:  5,
		},
		DB: DB{
			Path: "agentworld.db",
		},
	}
}

// Load reads path and overlays it on Default(). A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
