package world

import (
	"fmt"

	"github.com/talgya/agent-world/internal/entropy"
)

// Map holds the complete world grid. Tiles are stored row-major.
type Map struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   int64  `json:"seed"`
	Tiles  []Tile `json:"-"`
}

// NewMap creates an empty map of the given dimensions.
func NewMap(width, height int, seed int64) *Map {
	m := &Map{
		Width:  width,
		Height: height,
		Seed:   seed,
		Tiles:  make([]Tile, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := &m.Tiles[y*width+x]
			t.X, t.Y = x, y
		}
	}
	return m
}

// At returns the tile at (x, y), or nil if out of bounds.
func (m *Map) At(x, y int) *Tile {
	if !m.InBounds(x, y) {
		return nil
	}
	return &m.Tiles[y*m.Width+x]
}

// InBounds reports whether (x, y) lies on the grid.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// Walkable reports whether an agent can stand at (x, y).
func (m *Map) Walkable(x, y int) bool {
	t := m.At(x, y)
	return t != nil && t.Biome.Walkable()
}

// Nearby returns the tiles in the square of the given radius around
// (x, y), excluding the center tile itself.
func (m *Map) Nearby(x, y, radius int) []*Tile {
	out := make([]*Tile, 0, (2*radius+1)*(2*radius+1)-1)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if t := m.At(x+dx, y+dy); t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// FindSpawn samples up to 500 random positions looking for a walkable,
// unoccupied tile. Falls back to scanning outward from the grid center
// so registration never fails on a crowded map.
func (m *Map) FindSpawn(dice *entropy.Dice) (int, int, bool) {
	for i := 0; i < 500; i++ {
		x, y := dice.Intn(m.Width), dice.Intn(m.Height)
		t := m.At(x, y)
		if t.Biome.Walkable() && t.OccupantID == "" {
			return x, y, true
		}
	}
	cx, cy := m.Width/2, m.Height/2
	for r := 0; r < m.Width; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				t := m.At(cx+dx, cy+dy)
				if t != nil && t.Biome.Walkable() && t.OccupantID == "" {
					return t.X, t.Y, true
				}
			}
		}
	}
	return 0, 0, false
}

// Chebyshev returns the chessboard distance between two points, the
// range metric for movement, trade, and attack.
func Chebyshev(x1, y1, x2, y2 int) int {
	dx, dy := abs(x1-x2), abs(y1-y2)
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan returns the taxicab distance, used for counter-attack
// eligibility.
func Manhattan(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, seed=%d)", m.Width, m.Height, m.Seed)
}
