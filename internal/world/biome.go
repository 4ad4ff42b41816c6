package world

// Biome — идентификатор биома ячейки
type Biome string

const (
	BiomePlains Biome = "blockverse:plains"
	BiomeDesert Biome = "blockverse:desert"
	BiomeForest Biome = "blockverse:forest"
	BiomeOcean  Biome = "blockverse:ocean"
)

// DefaultBiome заполняет ячейки, биом которых не задан
const DefaultBiome = BiomePlains
