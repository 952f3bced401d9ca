package gen

import (
	"math"

	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/world/logic/mathx"
)

// Params shape the height map. DefaultParams gives heights in [10, 30].
type Params struct {
	Frequency       float64 `json:"frequency" yaml:"frequency"`
	HeightBase      float64 `json:"height_base" yaml:"height_base"`
	HeightAmplitude float64 `json:"height_amplitude" yaml:"height_amplitude"`
	DirtDepth       int     `json:"dirt_depth" yaml:"dirt_depth"`
}

func DefaultParams() Params {
	return Params{
		Frequency:       0.01,
		HeightBase:      10,
		HeightAmplitude: 10,
		DirtDepth:       2,
	}
}

func FloorDiv(a, b int) int {
	return mathx.FloorDiv(a, b)
}

func Mod(a, b int) int {
	return mathx.Mod(a, b)
}

// WorldColumn maps a chunk position and local column to world block coordinates.
func WorldColumn(cx, cz, size, x, z int) (wx, wz int64) {
	wx = int64(cx)*int64(size) + int64(x)
	wz = int64(cz)*int64(size) + int64(z)
	return wx, wz
}

// SampleColumn samples s at the scaled world column.
func SampleColumn(s Sampler, wx, wz int64, p Params) float64 {
	return s.Sample2D(float64(wx)*p.Frequency, float64(wz)*p.Frequency)
}

// ColumnHeight maps noise to the y of the surface block, clamped to [0, maxY].
func ColumnHeight(noise float64, p Params, maxY int) int {
	h := math.Floor((noise+1.0)*p.HeightAmplitude + p.HeightBase)
	if math.IsNaN(h) || h < 0 {
		return 0
	}
	if h >= float64(maxY) {
		return maxY
	}
	return int(h)
}

// LayerAt returns the block for y in a column whose surface is at height.
// The subtraction saturates so heights below the dirt depth never go negative.
func LayerAt(y, height, dirtDepth int) catalogs.BlockVariant {
	switch {
	case y > height:
		return catalogs.Empty
	case y == height:
		return catalogs.Grass
	case y > mathx.SatSub(height, dirtDepth+1):
		return catalogs.Dirt
	case height <= dirtDepth:
		// Saturated boundary: y == 0 here and the column is too short for stone.
		return catalogs.Dirt
	default:
		return catalogs.Stone
	}
}
