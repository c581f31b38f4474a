// Agent registry: creation, lookup, rankings. Spawn placement and the
// starting-claim bookkeeping are owned by the simulation, which calls
// Register with a resolved position.
package agents

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/agent-world/internal/entropy"
	"github.com/talgya/agent-world/internal/world"
)

// StartingFood is the edible reserve every fresh agent spawns with.
const StartingFood = 8

// api keys are "aw_" plus 48 hex chars.
const apiKeyBytes = 24

var spawnEmojis = []string{
	"🦊", "🐺", "🦅", "🐻", "🦁", "🐯", "🦉", "🐗", "🦬", "🐫",
	"🦂", "🐍", "🦇", "🐙", "🦈", "🐲", "🦌", "🐢", "🦀", "🐸",
}

var spawnColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#808080",
}

var spawnNames = []string{
	"Aldric", "Brenna", "Caius", "Delia", "Eamon", "Freya", "Garrick",
	"Hilda", "Ivor", "Jorah", "Kestrel", "Lyra", "Magnus", "Nessa",
	"Orin", "Petra", "Quill", "Rowan", "Sable", "Torin", "Una",
	"Varek", "Wren", "Xander", "Ysolde", "Zephyr",
}

// Registry holds every agent in the world. Reads come from API handlers
// concurrently with the tick loop, so the map is lock-guarded.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	// Insertion order, for stable iteration and round-robin batching.
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// RegisterOpts carries caller-supplied fields for a new agent. Zero
// values get randomized defaults.
type RegisterOpts struct {
	Name          string
	Strategy      Strategy
	Builtin       bool
	WalletAddress string
	WebhookURL    string
	LLMKey        string
}

// Register creates an agent at the given position. The caller resolves
// the spawn tile and the opening balance; this only mints identity.
func (r *Registry) Register(opts RegisterOpts, x, y int, tick uint64, dice *entropy.Dice) (*Agent, error) {
	key, err := newAPIKey()
	if err != nil {
		return nil, fmt.Errorf("mint api key: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = spawnNames[dice.Intn(len(spawnNames))]
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = AllStrategies[dice.Intn(len(AllStrategies))]
	}

	a := &Agent{
		ID:       uuid.NewString(),
		Name:     name,
		Emoji:    spawnEmojis[dice.Intn(len(spawnEmojis))],
		Color:    spawnColors[dice.Intn(len(spawnColors))],
		Strategy: strategy,
		X:        x,
		Y:        y,
		Health:   MaxHealth,
		Alive:    true,
		Builtin:  opts.Builtin,

		WalletAddress: opts.WalletAddress,
		APIKey:        key,
		WebhookURL:    opts.WebhookURL,
		LLMKey:        opts.LLMKey,
		CreatedTick:   tick,
	}
	a.Inventory[world.ResourceFood] = StartingFood

	r.mu.Lock()
	r.agents[a.ID] = a
	r.order = append(r.order, a.ID)
	r.mu.Unlock()

	return a, nil
}

// Restore inserts an agent loaded from persistence.
func (r *Registry) Restore(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.agents[a.ID] = a
}

// Get returns the agent with the given ID, or nil.
func (r *Registry) Get(id string) *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[id]
}

// ByAPIKey returns the agent owning the key, or nil.
func (r *Registry) ByAPIKey(key string) *Agent {
	if key == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.APIKey == key {
			return a
		}
	}
	return nil
}

// All returns every agent in insertion order.
func (r *Registry) All() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Alive returns living agents in insertion order.
func (r *Registry) Alive() []*Agent {
	all := r.All()
	out := all[:0:0]
	for _, a := range all {
		if a.Alive {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the total number of agents ever registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Leaderboard returns living agents sorted by score descending.
func (r *Registry) Leaderboard() []*Agent {
	out := r.Alive()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out
}

// Ranking buckets an agent into a quartile label used in LLM prompts
// and the adaptive rule strategies.
func (r *Registry) Ranking(a *Agent) string {
	board := r.Leaderboard()
	pos := 0
	for i, b := range board {
		if b.ID == a.ID {
			pos = i
			break
		}
	}
	n := len(board)
	if n == 0 {
		return "DOING WELL"
	}
	switch {
	case pos < n/4 || pos == 0:
		return "DOMINATING"
	case pos < n/2:
		return "DOING WELL"
	case pos < 3*n/4:
		return "STRUGGLING"
	default:
		return "FALLING BEHIND"
	}
}

func newAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "aw_" + hex.EncodeToString(buf), nil
}
