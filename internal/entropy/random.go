// Package entropy provides the shared randomness source for the
// simulation. Everything stochastic (combat rolls, resource seeding,
// price walks) draws from one seeded Dice so runs are reproducible
// from the world seed.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Dice is a mutex-guarded pseudo-random source. Safe for use from the
// tick goroutine and API handlers concurrently.
type Dice struct {
	mu sync.Mutex
	r  *mrand.Rand
}

// New creates a Dice seeded deterministically.
func New(seed int64) *Dice {
	return &Dice{r: mrand.New(mrand.NewSource(seed))}
}

// NewUnseeded creates a Dice seeded from crypto/rand, for callers that
// want non-reproducible rolls (API key generation does its own thing).
func NewUnseeded() *Dice {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return New(1)
	}
	return New(int64(binary.LittleEndian.Uint64(buf[:])))
}

// Float returns a float64 in [0, 1).
func (d *Dice) Float() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.r.Float64()
}

// Intn returns an int in [0, n). n must be > 0.
func (d *Dice) Intn(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.r.Intn(n)
}

// Range returns an int in [lo, hi] inclusive.
func (d *Dice) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo + d.r.Intn(hi-lo+1)
}

// Chance returns true with probability p.
func (d *Dice) Chance(p float64) bool {
	return d.Float() < p
}

// Pick returns a uniformly random element index for a slice of length n,
// or -1 when n is 0.
func (d *Dice) Pick(n int) int {
	if n == 0 {
		return -1
	}
	return d.Intn(n)
}
