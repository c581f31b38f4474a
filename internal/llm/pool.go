// Platform key pool with rotation. A rate-limited key is benched for a
// cooldown while the rest keep serving; the pool only fails when every
// key is benched.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoKeys means every pool key is missing or cooling down.
var ErrNoKeys = errors.New("no usable llm keys")

// Pool rotates completions across several API keys.
type Pool struct {
	clients []*Client

	mu       sync.Mutex
	next     int
	benched  map[int]time.Time
	cooldown time.Duration

	now func() time.Time
}

// NewPool builds a pool from the configured keys. A pool with no keys
// is valid and always returns ErrNoKeys.
func NewPool(keys []string, baseURL, model string, callTimeout, cooldown time.Duration) *Pool {
	if cooldown == 0 {
		cooldown = time.Minute
	}
	p := &Pool{
		benched:  make(map[int]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, key := range keys {
		if c := NewClient(key, baseURL, model, callTimeout); c != nil {
			p.clients = append(p.clients, c)
		}
	}
	return p
}

// Enabled reports whether the pool has any keys at all.
func (p *Pool) Enabled() bool {
	return p != nil && len(p.clients) > 0
}

// Complete runs the prompt on the next usable key, benching keys that
// report rate limits and retrying on the remainder.
func (p *Pool) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error) {
	if !p.Enabled() {
		return "", ErrNoKeys
	}
	for attempts := 0; attempts < len(p.clients); attempts++ {
		idx, c := p.pick()
		if c == nil {
			return "", ErrNoKeys
		}
		text, err := c.Complete(ctx, system, userPrompt, maxTokens)
		if err == nil {
			return text, nil
		}
		var rl *RateLimitError
		if errors.As(err, &rl) {
			p.bench(idx)
			slog.Warn("llm key benched", "key_index", idx, "cooldown", p.cooldown)
			continue
		}
		return "", err
	}
	return "", ErrNoKeys
}

// pick returns the next key not cooling down, round-robin.
func (p *Pool) pick() (int, *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for attempts := 0; attempts < len(p.clients); attempts++ {
		idx := p.next
		p.next = (p.next + 1) % len(p.clients)
		if until, bad := p.benched[idx]; bad {
			if now.Before(until) {
				continue
			}
			delete(p.benched, idx)
		}
		return idx, p.clients[idx]
	}
	return -1, nil
}

func (p *Pool) bench(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.benched[idx] = p.now().Add(p.cooldown)
}
