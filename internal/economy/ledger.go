// The ledger is the single mutation point for agent balances. Every
// credit and debit flows through ModifyBalance so the history and the
// earnings breakdown stay exact.
package economy

import (
	"errors"
	"sync"

	"github.com/talgya/agent-world/internal/agents"
)

// ErrInsufficientFunds rejects any debit the balance cannot cover.
// Charges never go partial and never leave a negative balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Balance reasons, as recorded in history rows.
const (
	ReasonDeploy          = "DEPLOY_DEPOSIT"
	ReasonTopUp           = "TOP_UP"
	ReasonBrainFee        = "BRAIN_FEE"
	ReasonLandClaim       = "LAND_CLAIM"
	ReasonBuild           = "BUILD"
	ReasonAttackStake     = "ATTACK_STAKE"
	ReasonStakeReturn     = "STAKE_RETURN"
	ReasonStakeWon        = "STAKE_WON"
	ReasonLoot            = "LOOT"
	ReasonLooted          = "LOOTED"
	ReasonTerritoryTax    = "TERRITORY_TAX"
	ReasonTerritoryIncome = "TERRITORY_INCOME"
	ReasonTowerFee        = "TOWER_FEE"
	ReasonTowerIncome     = "TOWER_INCOME"
	ReasonMarketFee       = "MARKET_FEE"
	ReasonMarketIncome    = "MARKET_INCOME"
	ReasonTempleIncome    = "TEMPLE_INCOME"
	ReasonSellResource    = "SELL_RESOURCE"
	ReasonSellLand        = "SELL_LAND"
	ReasonBuyLand         = "BUY_LAND"
	ReasonAllianceTax     = "ALLIANCE_TAX"
	ReasonContribution    = "ALLIANCE_CONTRIBUTION"
	ReasonBetrayal        = "BETRAYAL_PENALTY"
	ReasonEpochReward     = "EPOCH_REWARD"
)

// Entry is one balance mutation.
type Entry struct {
	AgentID      string `json:"agent_id" db:"agent_id"`
	Delta        int    `json:"delta" db:"delta"`
	Reason       string `json:"reason" db:"reason"`
	BalanceAfter int    `json:"balance_after" db:"balance_after"`
	Tick         uint64 `json:"tick" db:"tick"`
}

// historyKeep caps the in-memory history per agent; persistence keeps
// the full trail.
const historyKeep = 100

// Stats aggregates an agent's lifetime money flow.
type Stats struct {
	Earned    int            `json:"earned"`
	Spent     int            `json:"spent"`
	Breakdown map[string]int `json:"breakdown"`
	History   []Entry        `json:"history"`
}

// Ledger owns all balance mutations plus the platform-side sinks.
type Ledger struct {
	mu    sync.Mutex
	stats map[string]*Stats

	// Currency destroyed by build burns.
	Burned int
	// Currency collected by the platform treasury (build cost halves,
	// unreturned stakes of the dead).
	Treasury int

	// Optional persistence hook, called with every entry.
	recorder func(Entry)
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{stats: make(map[string]*Stats)}
}

// Totals returns the platform treasury and the burned supply.
func (l *Ledger) Totals() (treasury, burned int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Treasury, l.Burned
}

// SetRecorder wires the persistence sink. Call before the first tick.
func (l *Ledger) SetRecorder(fn func(Entry)) {
	l.recorder = fn
}

// ModifyBalance applies delta to the agent's balance and records it. A
// debit the balance cannot cover returns ErrInsufficientFunds and
// changes nothing.
func (l *Ledger) ModifyBalance(a *agents.Agent, delta int, reason string, tick uint64) error {
	if delta < 0 && a.Balance+delta < 0 {
		return ErrInsufficientFunds
	}
	a.Balance += delta

	l.mu.Lock()
	st := l.stats[a.ID]
	if st == nil {
		st = &Stats{Breakdown: make(map[string]int)}
		l.stats[a.ID] = st
	}
	if delta > 0 {
		st.Earned += delta
		st.Breakdown[reason] += delta
	} else {
		st.Spent -= delta
	}
	e := Entry{AgentID: a.ID, Delta: delta, Reason: reason, BalanceAfter: a.Balance, Tick: tick}
	st.History = append(st.History, e)
	if len(st.History) > historyKeep {
		st.History = st.History[len(st.History)-historyKeep:]
	}
	rec := l.recorder
	l.mu.Unlock()

	if rec != nil {
		rec(e)
	}
	return nil
}

// Transfer moves amount from payer to payee atomically with respect to
// the insufficient-funds check.
func (l *Ledger) Transfer(from, to *agents.Agent, amount int, debitReason, creditReason string, tick uint64) error {
	if amount <= 0 {
		return nil
	}
	if err := l.ModifyBalance(from, -amount, debitReason, tick); err != nil {
		return err
	}
	return l.ModifyBalance(to, amount, creditReason, tick)
}

// StatsFor returns a copy of the agent's lifetime stats.
func (l *Ledger) StatsFor(id string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats[id]
	if st == nil {
		return Stats{Breakdown: map[string]int{}}
	}
	out := Stats{
		Earned:    st.Earned,
		Spent:     st.Spent,
		Breakdown: make(map[string]int, len(st.Breakdown)),
		History:   append([]Entry(nil), st.History...),
	}
	for k, v := range st.Breakdown {
		out.Breakdown[k] = v
	}
	return out
}

// RestoreStats reinstates persisted lifetime totals for an agent.
func (l *Ledger) RestoreStats(id string, earned, spent int, breakdown map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := &Stats{Earned: earned, Spent: spent, Breakdown: breakdown}
	if st.Breakdown == nil {
		st.Breakdown = make(map[string]int)
	}
	l.stats[id] = st
}
