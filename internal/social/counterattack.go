// Counter-attack queue. When an agent survives an attack, its nearby
// allies are queued to retaliate; the engine drains the queue at the
// end of the tick.
package social

import "sync"

// CounterAttack is one pending retaliation.
type CounterAttack struct {
	AvengerID string `json:"avenger_id"`
	TargetID  string `json:"target_id"`
	// Tick the triggering attack happened on.
	Tick uint64 `json:"tick"`
}

// CounterQueue is a FIFO of pending retaliations.
type CounterQueue struct {
	mu      sync.Mutex
	pending []CounterAttack
}

// NewCounterQueue creates an empty queue.
func NewCounterQueue() *CounterQueue {
	return &CounterQueue{}
}

// Enqueue adds a retaliation. Duplicates for the same avenger and
// target in the same tick are collapsed.
func (q *CounterQueue) Enqueue(ca CounterAttack) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.pending {
		if p.AvengerID == ca.AvengerID && p.TargetID == ca.TargetID && p.Tick == ca.Tick {
			return
		}
	}
	q.pending = append(q.pending, ca)
}

// Drain removes and returns everything queued, in order.
func (q *CounterQueue) Drain() []CounterAttack {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len returns how many retaliations are waiting.
func (q *CounterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
