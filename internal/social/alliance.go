// Package social provides alliances: proposals, membership, treasuries,
// and the counter-attack queue that allies feed when one of them is hit.
package social

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/agent-world/internal/agents"
)

const (
	// MaxMembers caps alliance size.
	MaxMembers = 5
	// ProposalTTLTicks is how long a proposal stays open.
	ProposalTTLTicks = 10
	// VisionBonus widens an allied agent's observation radius.
	VisionBonus = 3
	// TradeBonusPct is the mutual bonus on trades between allies.
	TradeBonusPct = 0.10
	// CounterAttackRadius bounds which allies retaliate, in Manhattan
	// distance from the defender.
	CounterAttackRadius = 3
	// IncomeTaxPct is skimmed from allied members' income into the
	// treasury.
	IncomeTaxPct = 0.05
)

var (
	ErrAllianceFull  = errors.New("alliance is full")
	ErrNoProposal    = errors.New("no such proposal")
	ErrAlreadyAllied = errors.New("agents are already allied")
	ErrNotInAlliance = errors.New("agent is not in an alliance")
)

// Alliance is a pact of up to MaxMembers agents with a shared treasury.
type Alliance struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	Treasury    int      `json:"treasury"`
	CreatedTick uint64   `json:"created_tick"`
}

// HasMember reports whether the agent ID belongs to the alliance.
func (al *Alliance) HasMember(id string) bool {
	for _, m := range al.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Proposal is a pending alliance offer from one agent to another.
type Proposal struct {
	ID          string `json:"id"`
	FromID      string `json:"from_id"`
	ToID        string `json:"to_id"`
	CreatedTick uint64 `json:"created_tick"`
}

// Alliances is the store for every pact and open proposal.
type Alliances struct {
	mu        sync.RWMutex
	alliances map[string]*Alliance
	proposals map[string]*Proposal
}

// NewAlliances creates an empty store.
func NewAlliances() *Alliances {
	return &Alliances{
		alliances: make(map[string]*Alliance),
		proposals: make(map[string]*Proposal),
	}
}

// Restore inserts a persisted alliance.
func (s *Alliances) Restore(al *Alliance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alliances[al.ID] = al
}

// RestoreProposal inserts a persisted open proposal.
func (s *Alliances) RestoreProposal(p *Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = p
}

// Proposals returns every open proposal.
func (s *Alliances) Proposals() []*Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	return out
}

// Get returns the alliance with the given ID, or nil.
func (s *Alliances) Get(id string) *Alliance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alliances[id]
}

// All returns every alliance.
func (s *Alliances) All() []*Alliance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Alliance, 0, len(s.alliances))
	for _, al := range s.alliances {
		out = append(out, al)
	}
	return out
}

// AreAllied reports whether two agents share an alliance.
func (s *Alliances) AreAllied(a, b *agents.Agent) bool {
	return a.AllianceID != "" && a.AllianceID == b.AllianceID
}

// Propose opens an offer from one agent to another. Duplicate open
// offers between the same pair are collapsed.
func (s *Alliances) Propose(from, to *agents.Agent, tick uint64) (*Proposal, error) {
	if s.AreAllied(from, to) {
		return nil, ErrAlreadyAllied
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.proposals {
		if p.FromID == from.ID && p.ToID == to.ID {
			return p, nil
		}
	}
	p := &Proposal{
		ID:          uuid.NewString(),
		FromID:      from.ID,
		ToID:        to.ID,
		CreatedTick: tick,
	}
	s.proposals[p.ID] = p
	return p, nil
}

// OpenProposalFor returns the oldest open proposal addressed to the
// agent, or nil.
func (s *Alliances) OpenProposalFor(id string) *Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Proposal
	for _, p := range s.proposals {
		if p.ToID != id {
			continue
		}
		if best == nil || p.CreatedTick < best.CreatedTick {
			best = p
		}
	}
	return best
}

// Accept resolves a proposal. The acceptor joins the proposer's pact if
// it has room, otherwise the proposer joins the acceptor's, otherwise a
// fresh two-member pact is created. An acceptor switching pacts is
// removed from its old one first; lookup resolves members left behind
// when that dissolves it.
func (s *Alliances) Accept(p *Proposal, from, to *agents.Agent, lookup func(id string) *agents.Agent, tick uint64) (*Alliance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return nil, ErrNoProposal
	}
	delete(s.proposals, p.ID)
	if from.AllianceID != "" && from.AllianceID == to.AllianceID {
		return nil, ErrAlreadyAllied
	}

	if al := s.alliances[from.AllianceID]; al != nil {
		if len(al.Members) >= MaxMembers {
			return nil, ErrAllianceFull
		}
		if s.alliances[to.AllianceID] != nil {
			s.removeLocked(to, lookup)
		}
		al.Members = append(al.Members, to.ID)
		to.AllianceID = al.ID
		return al, nil
	}
	if al := s.alliances[to.AllianceID]; al != nil {
		if len(al.Members) >= MaxMembers {
			return nil, ErrAllianceFull
		}
		al.Members = append(al.Members, from.ID)
		from.AllianceID = al.ID
		return al, nil
	}

	al := &Alliance{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s-%s Pact", from.Name, to.Name),
		Members:     []string{from.ID, to.ID},
		CreatedTick: tick,
	}
	s.alliances[al.ID] = al
	from.AllianceID = al.ID
	to.AllianceID = al.ID
	return al, nil
}

// Reject discards a proposal.
func (s *Alliances) Reject(p *Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return ErrNoProposal
	}
	delete(s.proposals, p.ID)
	return nil
}

// Expire drops proposals older than the TTL. Returns how many went.
func (s *Alliances) Expire(tick uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, p := range s.proposals {
		if tick > p.CreatedTick+ProposalTTLTicks {
			delete(s.proposals, id)
			dropped++
		}
	}
	return dropped
}

// Leave removes the agent from its pact. A pact left with one or zero
// members dissolves; the remainder keeps the treasury as a farewell.
func (s *Alliances) Leave(a *agents.Agent, others func(id string) *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(a, others)
}

// Expel is Leave initiated by the pact, used on betrayal.
func (s *Alliances) Expel(a *agents.Agent, others func(id string) *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(a, others)
}

func (s *Alliances) removeLocked(a *agents.Agent, others func(id string) *agents.Agent) error {
	al := s.alliances[a.AllianceID]
	if al == nil {
		return ErrNotInAlliance
	}
	kept := al.Members[:0]
	for _, m := range al.Members {
		if m != a.ID {
			kept = append(kept, m)
		}
	}
	al.Members = kept
	a.AllianceID = ""

	if len(al.Members) <= 1 {
		for _, m := range al.Members {
			if left := others(m); left != nil {
				left.AllianceID = ""
			}
		}
		delete(s.alliances, al.ID)
	}
	return nil
}

// AlliesOf returns the living members of the agent's pact, excluding
// the agent itself.
func (s *Alliances) AlliesOf(a *agents.Agent, lookup func(id string) *agents.Agent) []*agents.Agent {
	al := s.Get(a.AllianceID)
	if al == nil {
		return nil
	}
	out := make([]*agents.Agent, 0, len(al.Members)-1)
	for _, m := range al.Members {
		if m == a.ID {
			continue
		}
		if ally := lookup(m); ally != nil && ally.Alive {
			out = append(out, ally)
		}
	}
	return out
}
