package store

import genpkg "voxelterrain.ai/internal/sim/world/terrain/gen"

// GenerateTerrain fills the chunk from s with the default height-map parameters.
func (c *Chunk) GenerateTerrain(s genpkg.Sampler) {
	c.GenerateTerrainWith(s, genpkg.DefaultParams())
}

// GenerateTerrainWith writes grass over dirt over stone for every column.
// Cells above the surface are left as they are.
func (c *Chunk) GenerateTerrainWith(s genpkg.Sampler, p genpkg.Params) {
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			wx, wz := genpkg.WorldColumn(c.CX, c.CZ, ChunkSize, x, z)
			n := genpkg.SampleColumn(s, wx, wz, p)
			height := genpkg.ColumnHeight(n, p, ChunkHeight-1)
			for y := 0; y <= height; y++ {
				c.SetBlock(x, y, z, genpkg.LayerAt(y, height, p.DirtDepth))
			}
		}
	}
}

// GenerateChunk builds and fills a new chunk with the store's sampler and params.
func (s *ChunkStore) GenerateChunk(cx, cz int) *Chunk {
	ch := NewChunk(cx, cz)
	ch.GenerateTerrainWith(s.Sampler, s.Gen.Params)
	_ = ch.Digest()
	return ch
}
