// Action memory: the short trail of what an agent just did. Feeds the
// repetition guard and the LLM observation context.
package agents

// MemoryLength caps the action trail per agent.
const MemoryLength = 5

// ActionRecord is one remembered action.
type ActionRecord struct {
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	Summary string `json:"summary,omitempty"`
}

// Remember appends an action to the agent's trail, dropping the oldest
// entry when full.
func (a *Agent) Remember(tick uint64, kind, summary string) {
	a.Memory = append(a.Memory, ActionRecord{Tick: tick, Kind: kind, Summary: summary})
	if len(a.Memory) > MemoryLength {
		a.Memory = a.Memory[len(a.Memory)-MemoryLength:]
	}
}

// RepetitionCount returns how many consecutive trailing actions share
// the given kind. Three or more triggers the variety override in the
// decision engine.
func (a *Agent) RepetitionCount(kind string) int {
	count := 0
	for i := len(a.Memory) - 1; i >= 0; i-- {
		if a.Memory[i].Kind != kind {
			break
		}
		count++
	}
	return count
}

// LastAction returns the most recent record, or nil when the trail is
// empty.
func (a *Agent) LastAction() *ActionRecord {
	if len(a.Memory) == 0 {
		return nil
	}
	return &a.Memory[len(a.Memory)-1]
}
