package world

import (
	"testing"

	"github.com/talgya/agent-world/internal/entropy"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(40, 30, 7)
	b := Generate(40, 30, 7)

	if len(a.Tiles) != len(b.Tiles) {
		t.Fatalf("tile count mismatch: %d vs %d", len(a.Tiles), len(b.Tiles))
	}
	for i := range a.Tiles {
		if a.Tiles[i].Biome != b.Tiles[i].Biome {
			t.Fatalf("biome diverges at index %d: %v vs %v", i, a.Tiles[i].Biome, b.Tiles[i].Biome)
		}
		if a.Tiles[i].Resource != b.Tiles[i].Resource || a.Tiles[i].ResourceAmount != b.Tiles[i].ResourceAmount {
			t.Fatalf("resources diverge at index %d", i)
		}
	}

	c := Generate(40, 30, 8)
	same := true
	for i := range a.Tiles {
		if a.Tiles[i].Biome != c.Tiles[i].Biome {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical biome layers")
	}
}

func TestGenerateResourcePlacement(t *testing.T) {
	m := Generate(80, 55, 42)

	found := 0
	for i := range m.Tiles {
		tile := &m.Tiles[i]
		if tile.Resource == ResourceNone {
			if tile.ResourceAmount != 0 {
				t.Fatalf("tile (%d,%d) has amount %d but no resource", tile.X, tile.Y, tile.ResourceAmount)
			}
			continue
		}
		found++
		if tile.ResourceAmount < 3 || tile.ResourceAmount > 10 {
			t.Fatalf("tile (%d,%d) deposit %d out of range", tile.X, tile.Y, tile.ResourceAmount)
		}
		native := false
		for _, b := range resourceBiomes[tile.Resource] {
			if b == tile.Biome {
				native = true
				break
			}
		}
		if !native {
			t.Fatalf("%s deposited on %v, not a native biome", tile.Resource, tile.Biome)
		}
	}
	if found == 0 {
		t.Fatal("no resource deposits placed")
	}
}

func TestGenerateHasWaterBorder(t *testing.T) {
	m := Generate(80, 55, 42)
	counts := BiomeCounts(m)
	water := counts[BiomeDeepWater] + counts[BiomeWater] + counts[BiomeShallowWater]
	if water == 0 {
		t.Fatal("radial falloff should produce water at the edges")
	}
	if water >= len(m.Tiles) {
		t.Fatal("map is all water")
	}
}

func TestFindSpawnReturnsWalkableEmptyTile(t *testing.T) {
	m := Generate(60, 40, 3)
	dice := entropy.New(3)

	for i := 0; i < 50; i++ {
		x, y, ok := m.FindSpawn(dice)
		if !ok {
			t.Fatal("no spawn found on a map with land")
		}
		tile := m.At(x, y)
		if tile == nil || !tile.Biome.Walkable() {
			t.Fatalf("spawn (%d,%d) is not walkable", x, y)
		}
		if tile.OccupantID != "" {
			t.Fatalf("spawn (%d,%d) is occupied", x, y)
		}
	}
}

func TestWalkableAndDesirability(t *testing.T) {
	cases := []struct {
		biome    Biome
		walkable bool
	}{
		{BiomeDeepWater, false},
		{BiomeWater, false},
		{BiomeShallowWater, false},
		{BiomeBeach, true},
		{BiomePlains, true},
		{BiomeMountain, true},
		{BiomeSnow, true},
	}
	for _, tc := range cases {
		if got := tc.biome.Walkable(); got != tc.walkable {
			t.Errorf("Walkable(%v) = %v, want %v", tc.biome, got, tc.walkable)
		}
	}

	if BiomeMountain.Desirability() <= BiomeSnow.Desirability() {
		t.Fatal("mountains should be worth more than snow")
	}
}

func TestNearbyExcludesCenterAndRespectsBounds(t *testing.T) {
	m := NewMap(10, 10, 1)
	tiles := m.Nearby(0, 0, 2)
	for _, tile := range tiles {
		if tile.X == 0 && tile.Y == 0 {
			t.Fatal("Nearby included the center tile")
		}
		if !m.InBounds(tile.X, tile.Y) {
			t.Fatalf("Nearby returned out-of-bounds tile (%d,%d)", tile.X, tile.Y)
		}
	}
	// Corner with radius 2: 3x3 window minus the center.
	if len(tiles) != 8 {
		t.Fatalf("corner Nearby returned %d tiles, want 8", len(tiles))
	}
}
