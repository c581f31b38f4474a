// Per-agent financial reporting for the API.
package economy

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/talgya/agent-world/internal/agents"
)

// FinancialSummary is the money-side view of one agent.
type FinancialSummary struct {
	AgentID string `json:"agent_id"`
	Balance int    `json:"balance"`
	Earned  int    `json:"earned"`
	Spent   int    `json:"spent"`
	Net     int    `json:"net"`
	// ROI relative to the deploy deposit, as a percentage.
	ROI       float64        `json:"roi"`
	Display   string         `json:"display"`
	Breakdown map[string]int `json:"breakdown"`
	History   []Entry        `json:"history"`
}

// Financials builds the summary. deposit is the agent's opening stake,
// the baseline for ROI.
func (l *Ledger) Financials(a *agents.Agent, deposit int) FinancialSummary {
	st := l.StatsFor(a.ID)
	net := st.Earned - st.Spent
	roi := 0.0
	if deposit > 0 {
		roi = float64(a.Balance-deposit) / float64(deposit) * 100
	}
	return FinancialSummary{
		AgentID: a.ID,
		Balance: a.Balance,
		Earned:  st.Earned,
		Spent:   st.Spent,
		Net:     net,
		ROI:     roi,
		Display: fmt.Sprintf("%s earned, %s spent, ROI %.1f%%",
			humanize.Comma(int64(st.Earned)), humanize.Comma(int64(st.Spent)), roi),
		Breakdown: st.Breakdown,
		History:   st.History,
	}
}
