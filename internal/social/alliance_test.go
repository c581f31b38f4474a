package social

import (
	"errors"
	"testing"

	"github.com/talgya/agent-world/internal/agents"
)

func pactAgent(id, name string) *agents.Agent {
	return &agents.Agent{ID: id, Name: name, Alive: true}
}

func nobody(string) *agents.Agent { return nil }

func TestProposeCollapsesDuplicates(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")

	p1, err := s.Propose(a, b, 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	p2, err := s.Propose(a, b, 4)
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("duplicate proposal not collapsed: %s vs %s", p1.ID, p2.ID)
	}
	if got := s.OpenProposalFor("b"); got == nil || got.ID != p1.ID {
		t.Errorf("OpenProposalFor returned %+v, want proposal %s", got, p1.ID)
	}
}

func TestProposeRejectsExistingAllies(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")

	p, _ := s.Propose(a, b, 1)
	if _, err := s.Accept(p, a, b, nobody, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := s.Propose(a, b, 3); !errors.Is(err, ErrAlreadyAllied) {
		t.Errorf("propose between allies: got %v, want ErrAlreadyAllied", err)
	}
}

func TestAcceptCreatesPact(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")

	p, _ := s.Propose(a, b, 1)
	al, err := s.Accept(p, a, b, nobody, 2)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if al.Name != "Ash-Birch Pact" {
		t.Errorf("pact name = %q", al.Name)
	}
	if len(al.Members) != 2 || !al.HasMember("a") || !al.HasMember("b") {
		t.Errorf("members = %v", al.Members)
	}
	if a.AllianceID != al.ID || b.AllianceID != al.ID {
		t.Errorf("agents not linked: %q %q", a.AllianceID, b.AllianceID)
	}
	if _, err := s.Accept(p, a, b, nobody, 3); !errors.Is(err, ErrNoProposal) {
		t.Errorf("re-accept: got %v, want ErrNoProposal", err)
	}
}

func TestAcceptJoinsExistingPact(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	c := pactAgent("c", "Cedar")

	p, _ := s.Propose(a, b, 1)
	al, _ := s.Accept(p, a, b, nobody, 2)

	p2, _ := s.Propose(a, c, 3)
	al2, err := s.Accept(p2, a, c, nobody, 4)
	if err != nil {
		t.Fatalf("accept into pact: %v", err)
	}
	if al2.ID != al.ID {
		t.Fatalf("new pact created instead of joining existing one")
	}
	if len(al.Members) != 3 || c.AllianceID != al.ID {
		t.Errorf("members = %v, c alliance = %q", al.Members, c.AllianceID)
	}
}

func TestAcceptRespectsMaxMembers(t *testing.T) {
	s := NewAlliances()
	founder := pactAgent("f", "Fir")
	second := pactAgent("s", "Spruce")
	p, _ := s.Propose(founder, second, 1)
	al, _ := s.Accept(p, founder, second, nobody, 1)

	for i := len(al.Members); i < MaxMembers; i++ {
		next := pactAgent(string(rune('g'+i)), "Grove")
		pn, _ := s.Propose(founder, next, 2)
		if _, err := s.Accept(pn, founder, next, nobody, 2); err != nil {
			t.Fatalf("filling pact: %v", err)
		}
	}

	extra := pactAgent("x", "Xylem")
	px, _ := s.Propose(founder, extra, 3)
	if _, err := s.Accept(px, founder, extra, nobody, 3); !errors.Is(err, ErrAllianceFull) {
		t.Errorf("over-cap accept: got %v, want ErrAllianceFull", err)
	}
	if extra.AllianceID != "" {
		t.Errorf("rejected agent got an alliance: %q", extra.AllianceID)
	}
}

func TestAcceptSwitchesPacts(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	c := pactAgent("c", "Cedar")
	d := pactAgent("d", "Dogwood")
	byID := map[string]*agents.Agent{"a": a, "b": b, "c": c, "d": d}
	lookup := func(id string) *agents.Agent { return byID[id] }

	p, _ := s.Propose(a, b, 1)
	al, _ := s.Accept(p, a, b, lookup, 1)
	p2, _ := s.Propose(c, d, 1)
	old, _ := s.Accept(p2, c, d, lookup, 1)

	p3, _ := s.Propose(a, d, 2)
	joined, err := s.Accept(p3, a, d, lookup, 2)
	if err != nil {
		t.Fatalf("accept across pacts: %v", err)
	}
	if joined.ID != al.ID || d.AllianceID != al.ID {
		t.Fatalf("d joined %q, want %q", d.AllianceID, al.ID)
	}
	if s.Get(old.ID) != nil {
		t.Error("abandoned two-member pact was not dissolved")
	}
	if c.AllianceID != "" {
		t.Errorf("stranded member still linked to %q", c.AllianceID)
	}
	for _, pact := range s.All() {
		for _, m := range pact.Members {
			if m == "d" && pact.ID != al.ID {
				t.Errorf("d still listed in pact %q", pact.ID)
			}
		}
	}
}

func TestExpireDropsStaleProposals(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	c := pactAgent("c", "Cedar")

	s.Propose(a, b, 5)
	s.Propose(a, c, 12)

	if dropped := s.Expire(14); dropped != 0 {
		t.Errorf("Expire(14) dropped %d, want 0", dropped)
	}
	if dropped := s.Expire(16); dropped != 1 {
		t.Errorf("Expire(16) dropped %d, want 1", dropped)
	}
	if s.OpenProposalFor("b") != nil {
		t.Error("stale proposal to b still open")
	}
	if s.OpenProposalFor("c") == nil {
		t.Error("fresh proposal to c was dropped")
	}
}

func TestLeaveDissolvesSmallPact(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	byID := map[string]*agents.Agent{"a": a, "b": b}
	lookup := func(id string) *agents.Agent { return byID[id] }

	p, _ := s.Propose(a, b, 1)
	al, _ := s.Accept(p, a, b, lookup, 1)

	if err := s.Leave(a, lookup); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if a.AllianceID != "" || b.AllianceID != "" {
		t.Errorf("alliance IDs not cleared: %q %q", a.AllianceID, b.AllianceID)
	}
	if s.Get(al.ID) != nil {
		t.Error("one-member pact was not dissolved")
	}
	if err := s.Leave(a, lookup); !errors.Is(err, ErrNotInAlliance) {
		t.Errorf("second leave: got %v, want ErrNotInAlliance", err)
	}
}

func TestLeaveKeepsLargerPact(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	c := pactAgent("c", "Cedar")
	byID := map[string]*agents.Agent{"a": a, "b": b, "c": c}
	lookup := func(id string) *agents.Agent { return byID[id] }

	p, _ := s.Propose(a, b, 1)
	al, _ := s.Accept(p, a, b, lookup, 1)
	p2, _ := s.Propose(a, c, 1)
	s.Accept(p2, a, c, lookup, 1)

	if err := s.Expel(c, lookup); err != nil {
		t.Fatalf("expel: %v", err)
	}
	if s.Get(al.ID) == nil {
		t.Fatal("pact dissolved with two members left")
	}
	if al.HasMember("c") || c.AllianceID != "" {
		t.Error("expelled member still linked")
	}
}

func TestAlliesOfSkipsDead(t *testing.T) {
	s := NewAlliances()
	a := pactAgent("a", "Ash")
	b := pactAgent("b", "Birch")
	c := pactAgent("c", "Cedar")
	byID := map[string]*agents.Agent{"a": a, "b": b, "c": c}
	lookup := func(id string) *agents.Agent { return byID[id] }

	p, _ := s.Propose(a, b, 1)
	s.Accept(p, a, b, lookup, 1)
	p2, _ := s.Propose(a, c, 1)
	s.Accept(p2, a, c, lookup, 1)
	c.Alive = false

	allies := s.AlliesOf(a, lookup)
	if len(allies) != 1 || allies[0].ID != "b" {
		t.Errorf("AlliesOf = %v, want just b", allies)
	}
}

func TestCounterQueueCollapsesDuplicates(t *testing.T) {
	q := NewCounterQueue()
	q.Enqueue(CounterAttack{AvengerID: "a", TargetID: "t", Tick: 7})
	q.Enqueue(CounterAttack{AvengerID: "a", TargetID: "t", Tick: 7})
	q.Enqueue(CounterAttack{AvengerID: "b", TargetID: "t", Tick: 7})
	if q.Len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.Len())
	}

	got := q.Drain()
	if len(got) != 2 || got[0].AvengerID != "a" || got[1].AvengerID != "b" {
		t.Errorf("Drain = %v", got)
	}
	if q.Len() != 0 {
		t.Error("queue not empty after drain")
	}
}
