// World generation using layered simplex noise: an elevation field with
// continental falloff plus an independent moisture field, classified
// into biomes by ordered thresholds.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/agent-world/internal/entropy"
)

const (
	elevationScale   = 0.04
	elevationOctaves = 6
	moistureScale    = 0.055
	moistureOctaves  = 4
	// Moisture samples a second noise field at an offset seed so the
	// two layers stay uncorrelated.
	moistureSeedOffset = 95

	resourceChance    = 0.40
	resourceAmountMin = 3
	resourceAmountMax = 10
)

// Generate creates a complete world map from the seed. The same seed,
// width, and height always produce the same tiles.
func Generate(width, height int, seed int64) *Map {
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + moistureSeedOffset)
	dice := entropy.New(seed)

	m := NewMap(width, height, seed)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)

			elev := octaveNoise(elevNoise, fx, fy, elevationOctaves, elevationScale, 0.5)

			// Continental shaping: sink elevation toward the map edge
			// so the landmass sits in open water.
			nx := fx/float64(width) - 0.5
			ny := fy/float64(height) - 0.5
			dist := math.Sqrt(nx*nx+ny*ny) * 2
			elev = elev*(1-0.45*math.Pow(dist, 1.6)) + 0.05
			elev = clamp01(elev)

			moist := octaveNoise(moistNoise, fx, fy, moistureOctaves, moistureScale, 0.5)

			t := m.At(x, y)
			t.Biome = classify(elev, moist)
		}
	}

	seedResources(m, dice)
	return m
}

// classify derives the biome from elevation and moisture. The checks
// are ordered: water bands first, then altitude bands, then moisture.
func classify(elev, moist float64) Biome {
	switch {
	case elev < 0.08:
		return BiomeDeepWater
	case elev < 0.15:
		return BiomeWater
	case elev < 0.20:
		return BiomeShallowWater
	case elev < 0.25:
		return BiomeBeach
	case elev > 0.82:
		return BiomeSnow
	case elev > 0.72:
		return BiomeMountain
	case elev > 0.62:
		return BiomeTundra
	}
	switch {
	case moist < 0.20:
		return BiomeDesert
	case moist < 0.36:
		return BiomePlains
	case moist < 0.52:
		return BiomeGrassland
	case moist < 0.70:
		return BiomeForest
	}
	return BiomeDenseForest
}

// seedResources places deposits on walkable land. Each tile has a flat
// chance to hold one resource drawn from the kinds native to its biome.
func seedResources(m *Map, dice *entropy.Dice) {
	// Built in AllResources order so the same seed always deals the
	// same deposits.
	native := make(map[Biome][]Resource)
	for _, res := range AllResources {
		for _, b := range resourceBiomes[res] {
			native[b] = append(native[b], res)
		}
	}

	for i := range m.Tiles {
		t := &m.Tiles[i]
		if !t.Biome.Walkable() {
			continue
		}
		kinds := native[t.Biome]
		if len(kinds) == 0 || !dice.Chance(resourceChance) {
			continue
		}
		t.Resource = kinds[dice.Intn(len(kinds))]
		t.ResourceAmount = dice.Range(resourceAmountMin, resourceAmountMax)
	}
}

// octaveNoise sums multiple noise octaves for natural-looking fields.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BiomeCounts returns the biome distribution, handy for startup logs.
func BiomeCounts(m *Map) map[Biome]int {
	counts := make(map[Biome]int)
	for i := range m.Tiles {
		counts[m.Tiles[i].Biome]++
	}
	return counts
}
