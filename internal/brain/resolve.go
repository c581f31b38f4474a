// Reply resolution: turning webhook and LLM output into a bounded,
// executable action. Anything that does not resolve falls through to
// the rule trees.
package brain

import (
	"encoding/json"
	"strings"

	"github.com/talgya/agent-world/internal/actions"
	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/world"
)

// wireAction is the free-form reply shape. Everything is optional.
type wireAction struct {
	Action       string `json:"action"`
	DX           int    `json:"dx"`
	DY           int    `json:"dy"`
	TargetID     string `json:"target_id"`
	Resource     string `json:"resource"`
	Amount       int    `json:"amount"`
	WantResource string `json:"want_resource"`
	WantAmount   int    `json:"want_amount"`
	Building     string `json:"building"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Price        int    `json:"price"`
	Reason       string `json:"reason"`
}

// Resolve parses a raw reply into an action. The bool is false when
// the reply is unusable and the caller should fall back.
func (e *Engine) Resolve(a *agents.Agent, raw []byte) (actions.Action, bool) {
	payload := extractJSON(raw)
	if payload == nil {
		return actions.Action{}, false
	}
	var w wireAction
	if err := json.Unmarshal(payload, &w); err != nil {
		return actions.Action{}, false
	}

	kind := actions.Kind(strings.ToUpper(strings.TrimSpace(w.Action)))
	act := actions.Action{Kind: kind, Reason: w.Reason}

	switch kind {
	case actions.KindMove:
		act.DX, act.DY = clampStep(w.DX), clampStep(w.DY)
		if act.DX == 0 && act.DY == 0 {
			return actions.Action{}, false
		}
	case actions.KindMine, actions.KindIdle,
		actions.KindAcceptAlliance, actions.KindRejectAlliance, actions.KindLeaveAlliance:
		// No parameters.
	case actions.KindTrade:
		target := e.Registry.Get(w.TargetID)
		if target == nil || !target.Alive {
			return actions.Action{}, false
		}
		act.TargetID = target.ID
		act.Resource = world.ParseResource(strings.ToUpper(w.Resource))
		act.WantResource = world.ParseResource(strings.ToUpper(w.WantResource))
		if act.Resource == world.ResourceNone || act.WantResource == world.ResourceNone {
			return actions.Action{}, false
		}
		act.Amount, act.WantAmount = w.Amount, w.WantAmount
	case actions.KindAttack, actions.KindProposeAlliance:
		target := e.Registry.Get(w.TargetID)
		if target == nil || !target.Alive || target.ID == a.ID {
			return actions.Action{}, false
		}
		act.TargetID = target.ID
	case actions.KindBuild:
		act.Building = world.ParseBuilding(strings.ToUpper(w.Building))
		if act.Building == world.BuildingNone {
			return actions.Action{}, false
		}
	case actions.KindClaim, actions.KindSellLand, actions.KindBuyLand:
		act.X, act.Y = w.X, w.Y
		act.Price = w.Price
	case actions.KindSell:
		act.Resource = world.ParseResource(strings.ToUpper(w.Resource))
		if act.Resource == world.ResourceNone || w.Amount <= 0 {
			return actions.Action{}, false
		}
		act.Amount = w.Amount
	case actions.KindContribute:
		if w.Amount <= 0 {
			return actions.Action{}, false
		}
		act.Amount = w.Amount
	default:
		return actions.Action{}, false
	}

	return act, true
}

// extractJSON pulls the first top-level JSON object out of a reply that
// may wrap it in prose or code fences.
func extractJSON(raw []byte) []byte {
	s := string(raw)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1])
			}
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
