package catalogs

import "strings"

// BlockVariant is the palette id of a single grid cell.
type BlockVariant uint8

const (
	Empty BlockVariant = iota
	Grass
	Dirt
	Stone
	Liquid
)

// NumVariants is the size of the closed variant set.
const NumVariants = int(Liquid) + 1

var variantIDs = [NumVariants]string{
	Empty:  "EMPTY",
	Grass:  "GRASS",
	Dirt:   "DIRT",
	Stone:  "STONE",
	Liquid: "LIQUID",
}

var variantColors = [NumVariants][3]float32{
	Empty:  {0.0, 0.0, 0.0},
	Grass:  {0.2, 0.8, 0.2},
	Dirt:   {0.6, 0.4, 0.2},
	Stone:  {0.5, 0.5, 0.5},
	Liquid: {0.2, 0.4, 0.8},
}

// Variants returns every variant in palette order.
func Variants() []BlockVariant {
	out := make([]BlockVariant, NumVariants)
	for i := range out {
		out[i] = BlockVariant(i)
	}
	return out
}

func (b BlockVariant) Valid() bool {
	return int(b) < NumVariants
}

// IsSolid reports whether the block occupies space.
func (b BlockVariant) IsSolid() bool {
	switch b {
	case Empty, Liquid:
		return false
	}
	return b.Valid()
}

// IsTransparent is defined on its own and is not derived from IsSolid.
func (b BlockVariant) IsTransparent() bool {
	switch b {
	case Empty, Liquid:
		return true
	}
	return false
}

// Color returns normalized RGB. Empty is black and is never drawn.
func (b BlockVariant) Color() [3]float32 {
	if !b.Valid() {
		return variantColors[Empty]
	}
	return variantColors[b]
}

func (b BlockVariant) String() string {
	if !b.Valid() {
		return "UNKNOWN"
	}
	return variantIDs[b]
}

func ParseBlockVariant(s string) (BlockVariant, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, id := range variantIDs {
		if id == s {
			return BlockVariant(i), true
		}
	}
	return Empty, false
}
