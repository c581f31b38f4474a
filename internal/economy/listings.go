// Land listings: owned tiles put up for sale, resolved by BUY_LAND.
package economy

import (
	"sync"

	"github.com/google/uuid"
)

// Listing is one tile offered for sale.
type Listing struct {
	ID          string `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	SellerID    string `json:"seller_id"`
	Price       int    `json:"price"`
	CreatedTick uint64 `json:"created_tick"`
}

// Listings is the open land market.
type Listings struct {
	mu   sync.RWMutex
	open map[string]*Listing
}

// NewListings creates an empty land market.
func NewListings() *Listings {
	return &Listings{open: make(map[string]*Listing)}
}

// List offers a tile for sale, replacing any existing listing for the
// same tile.
func (s *Listings) List(x, y int, sellerID string, price int, tick uint64) *Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.open {
		if l.X == x && l.Y == y {
			delete(s.open, id)
		}
	}
	l := &Listing{
		ID: uuid.NewString(), X: x, Y: y,
		SellerID: sellerID, Price: price, CreatedTick: tick,
	}
	s.open[l.ID] = l
	return l
}

// At returns the open listing for a tile, or nil.
func (s *Listings) At(x, y int) *Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.open {
		if l.X == x && l.Y == y {
			return l
		}
	}
	return nil
}

// Remove closes a listing.
func (s *Listings) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, id)
}

// RemoveBySeller closes every listing owned by the seller, used when
// an agent dies or loses the tile.
func (s *Listings) RemoveBySeller(sellerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.open {
		if l.SellerID == sellerID {
			delete(s.open, id)
		}
	}
}

// All returns every open listing.
func (s *Listings) All() []*Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Listing, 0, len(s.open))
	for _, l := range s.open {
		out = append(out, l)
	}
	return out
}
