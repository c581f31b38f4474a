// Package world provides the tile grid, biomes, and procedural generation.
// Coordinates are plain (x, y) on a rectangular grid.
package world

// Biome classifies a tile's terrain. Ordering matters only for display;
// classification itself happens in generation by threshold.
type Biome uint8

const (
	BiomeDeepWater Biome = iota
	BiomeWater
	BiomeShallowWater
	BiomeBeach
	BiomeDesert
	BiomePlains
	BiomeGrassland
	BiomeForest
	BiomeDenseForest
	BiomeTundra
	BiomeMountain
	BiomeSnow
)

var biomeNames = [...]string{
	"deepWater", "water", "shallowWater", "beach", "desert", "plains",
	"grassland", "forest", "denseForest", "tundra", "mountain", "snow",
}

func (b Biome) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return "unknown"
}

// Walkable reports whether agents can stand on this biome. All water
// variants are impassable; they also never hold resources, buildings,
// or land claims.
func (b Biome) Walkable() bool {
	return b > BiomeShallowWater
}

// Desirability scales the land claim cost for the biome. Mountains are
// dear for their minerals, snow is nearly worthless.
func (b Biome) Desirability() float64 {
	switch b {
	case BiomeBeach:
		return 1.0
	case BiomeDesert:
		return 0.8
	case BiomePlains:
		return 1.5
	case BiomeGrassland:
		return 1.2
	case BiomeForest:
		return 1.3
	case BiomeDenseForest:
		return 1.1
	case BiomeTundra:
		return 0.7
	case BiomeMountain:
		return 1.8
	case BiomeSnow:
		return 0.6
	}
	return 1.0
}

// Resource enumerates the mineable resource kinds.
type Resource uint8

const (
	ResourceNone Resource = iota
	ResourceWood
	ResourceStone
	ResourceGold
	ResourceFood
	ResourceIron
	ResourceCrystal
)

var resourceNames = [...]string{
	"", "WOOD", "STONE", "GOLD", "FOOD", "IRON", "CRYSTAL",
}

func (r Resource) String() string {
	if int(r) < len(resourceNames) {
		return resourceNames[r]
	}
	return "unknown"
}

// AllResources lists the mineable kinds in a stable order.
var AllResources = []Resource{
	ResourceWood, ResourceStone, ResourceGold,
	ResourceFood, ResourceIron, ResourceCrystal,
}

// ParseResource maps a wire name back to its Resource. Returns
// ResourceNone for anything unrecognized.
func ParseResource(name string) Resource {
	for _, r := range AllResources {
		if resourceNames[r] == name {
			return r
		}
	}
	return ResourceNone
}

// resourceBiomes is the affinity table used when seeding deposits:
// a resource only spawns on the biomes listed for it.
var resourceBiomes = map[Resource][]Biome{
	ResourceWood:    {BiomeForest, BiomeDenseForest},
	ResourceStone:   {BiomeMountain, BiomeTundra},
	ResourceGold:    {BiomeDesert, BiomeMountain},
	ResourceFood:    {BiomePlains, BiomeGrassland},
	ResourceIron:    {BiomeMountain, BiomeSnow},
	ResourceCrystal: {BiomeSnow, BiomeTundra},
}

// Building enumerates the constructible structures.
type Building uint8

const (
	BuildingNone Building = iota
	BuildingHouse
	BuildingFarm
	BuildingMine
	BuildingTower
	BuildingMarket
	BuildingTemple
)

var buildingNames = [...]string{
	"", "HOUSE", "FARM", "MINE", "TOWER", "MARKET", "TEMPLE",
}

func (b Building) String() string {
	if int(b) < len(buildingNames) {
		return buildingNames[b]
	}
	return "unknown"
}

// ParseBuilding maps a wire name back to its Building kind.
func ParseBuilding(name string) Building {
	for i, n := range buildingNames {
		if i > 0 && n == name {
			return Building(i)
		}
	}
	return BuildingNone
}

// Tile is one cell of the world grid. OwnerID and OccupantID are agent
// IDs; empty string means unowned / unoccupied.
type Tile struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Biome Biome `json:"biome"`

	Resource       Resource `json:"resource,omitempty"`
	ResourceAmount int      `json:"resource_amount,omitempty"`

	Building      Building `json:"building,omitempty"`
	BuildingOwner string   `json:"building_owner,omitempty"`

	OwnerID    string `json:"owner_id,omitempty"`
	OccupantID string `json:"occupant_id,omitempty"`
}

// HasResource reports whether the tile still holds a mineable deposit.
func (t *Tile) HasResource() bool {
	return t.Resource != ResourceNone && t.ResourceAmount > 0
}
