// Package actions defines the action vocabulary and the executor that
// applies decided actions to the world.
package actions

import "github.com/talgya/agent-world/internal/world"

// Kind is the action type, matching the wire names agents decide with.
type Kind string

const (
	KindMove            Kind = "MOVE"
	KindMine            Kind = "MINE"
	KindTrade           Kind = "TRADE"
	KindBuild           Kind = "BUILD"
	KindClaim           Kind = "CLAIM_LAND"
	KindAttack          Kind = "ATTACK"
	KindProposeAlliance Kind = "PROPOSE_ALLIANCE"
	KindAcceptAlliance  Kind = "ACCEPT_ALLIANCE"
	KindRejectAlliance  Kind = "REJECT_ALLIANCE"
	KindLeaveAlliance   Kind = "LEAVE_ALLIANCE"
	KindContribute      Kind = "CONTRIBUTE_ALLIANCE"
	KindSell            Kind = "SELL_RESOURCE"
	KindSellLand        Kind = "SELL_LAND"
	KindBuyLand         Kind = "BUY_LAND"
	KindIdle            Kind = "IDLE"
)

// Category groups kinds for the repetition guard: forcing variety means
// forcing a different category, not just a different kind.
func (k Kind) Category() string {
	switch k {
	case KindMove:
		return "movement"
	case KindMine:
		return "gather"
	case KindTrade, KindSell, KindSellLand, KindBuyLand:
		return "commerce"
	case KindBuild, KindClaim:
		return "develop"
	case KindAttack:
		return "combat"
	case KindProposeAlliance, KindAcceptAlliance, KindRejectAlliance, KindLeaveAlliance, KindContribute:
		return "diplomacy"
	}
	return "idle"
}

// Action is one decided intent. Fields beyond Kind are read per kind;
// the rest stay zero.
type Action struct {
	Kind Kind `json:"action"`

	// MOVE
	DX int `json:"dx,omitempty"`
	DY int `json:"dy,omitempty"`

	// TRADE / ATTACK / alliance ops
	TargetID string `json:"target_id,omitempty"`

	// TRADE offer and ask; SELL uses Resource+Amount only.
	Resource     world.Resource `json:"-"`
	Amount       int            `json:"amount,omitempty"`
	WantResource world.Resource `json:"-"`
	WantAmount   int            `json:"want_amount,omitempty"`

	// BUILD
	Building world.Building `json:"-"`

	// CLAIM_LAND / SELL_LAND / BUY_LAND tile. Zero means the agent's
	// own tile.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// SELL_LAND asking price.
	Price int `json:"price,omitempty"`

	// Free-text motivation from LLM decisions, for the activity feed.
	Reason string `json:"reason,omitempty"`
}

// Result is the structured outcome of one executed action. Failures are
// outcomes, not errors: the tick continues either way.
type Result struct {
	Kind   Kind   `json:"kind"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func ok(kind Kind, detail string) Result {
	return Result{Kind: kind, OK: true, Detail: detail}
}

func fail(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}
