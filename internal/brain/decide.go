// The fallback chain. Each decision tries, in order: the agent's own
// webhook, the agent's own LLM key, the platform key pool, and finally
// the rule trees. The first level that yields a usable action wins;
// the rules never fail.
package brain

import (
	"context"
	"log/slog"
	"time"

	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/llm"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

// Decision sources, for logging and the activity feed.
const (
	SourceWebhook  = "webhook"
	SourceOwnLLM   = "own_llm"
	SourcePlatform = "platform_llm"
	SourceRules    = "rules"
)

const llmMaxTokens = 300

// Engine runs decisions for every agent in a tick batch.
type Engine struct {
	World     *world.Map
	Registry  *agents.Registry
	Alliances *social.Alliances
	Market    *economy.Market
	Dice      *entropy.Dice

	Observer *Observer
	Pool     *llm.Pool
	Webhook  *llm.Webhook

	// Own-key clients are built per call with these settings.
	BaseURL     string
	Model       string
	CallTimeout time.Duration

	AttackStake int
}

// Decide produces an action for the agent. allowPlatform gates level
// three; the scheduler clears it when the brain fee could not be paid.
func (e *Engine) Decide(ctx context.Context, a *agents.Agent, tick uint64, feed []Event, allowPlatform bool) (actions.Action, string) {
	obs := e.Observer.Observe(a, tick, feed)

	if a.WebhookURL != "" {
		if act, ok := e.decideWebhook(ctx, a, obs); ok {
			return act, SourceWebhook
		}
	}

	if a.LLMKey != "" {
		if act, ok := e.decideLLM(ctx, a, obs, llm.NewClient(a.LLMKey, e.BaseURL, e.Model, e.CallTimeout)); ok {
			return act, SourceOwnLLM
		}
	}

	if allowPlatform && e.Pool.Enabled() {
		if act, ok := e.decidePool(ctx, a, obs); ok {
			return act, SourcePlatform
		}
	}

	return e.decideRules(a, tick), SourceRules
}

func (e *Engine) decideWebhook(ctx context.Context, a *agents.Agent, obs Observation) (actions.Action, bool) {
	raw, err := e.Webhook.Decide(ctx, a.WebhookURL, obs)
	if err != nil {
		slog.Debug("webhook decision failed", "agent", a.Name, "error", err)
		return actions.Action{}, false
	}
	return e.Resolve(a, raw)
}

func (e *Engine) decideLLM(ctx context.Context, a *agents.Agent, obs Observation, client *llm.Client) (actions.Action, bool) {
	if !client.Enabled() {
		return actions.Action{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	text, err := client.Complete(callCtx, SystemPrompt(a), UserPrompt(obs), llmMaxTokens)
	if err != nil {
		slog.Debug("own-key decision failed", "agent", a.Name, "error", err)
		return actions.Action{}, false
	}
	return e.Resolve(a, []byte(text))
}

func (e *Engine) decidePool(ctx context.Context, a *agents.Agent, obs Observation) (actions.Action, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	text, err := e.Pool.Complete(callCtx, SystemPrompt(a), UserPrompt(obs), llmMaxTokens)
	if err != nil {
		slog.Debug("platform decision failed", "agent", a.Name, "error", err)
		return actions.Action{}, false
	}
	return e.Resolve(a, []byte(text))
}

func (e *Engine) decideRules(a *agents.Agent, tick uint64) actions.Action {
	return RuleDecide(&Context{
		Agent:       a,
		World:       e.World,
		Registry:    e.Registry,
		Alliances:   e.Alliances,
		Market:      e.Market,
		Dice:        e.Dice,
		Tick:        tick,
		AttackStake: e.AttackStake,
	})
}
