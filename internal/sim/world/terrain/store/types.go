package store

import (
	"crypto/sha256"
	"sync"

	"voxelterrain.ai/internal/sim/catalogs"
	genpkg "voxelterrain.ai/internal/sim/world/terrain/gen"
)

const (
	ChunkSize   = 16
	ChunkHeight = 64
	ChunkVolume = ChunkSize * ChunkHeight * ChunkSize
)

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is one ChunkSize x ChunkHeight x ChunkSize column of the world.
// Blocks are stored flat, x fastest, then z, then y.
type Chunk struct {
	CX, CZ int

	blocks [ChunkVolume]catalogs.BlockVariant

	dirty bool
	hash  [32]byte
}

// NewChunk returns a chunk at the given chunk-grid position with every cell Empty.
func NewChunk(cx, cz int) *Chunk {
	return &Chunk{CX: cx, CZ: cz, dirty: true}
}

func (c *Chunk) Key() ChunkKey { return ChunkKey{CX: c.CX, CZ: c.CZ} }

func inRange(x, y, z int) bool {
	return x >= 0 && x < ChunkSize &&
		y >= 0 && y < ChunkHeight &&
		z >= 0 && z < ChunkSize
}

func index(x, y, z int) int {
	return (y*ChunkSize+z)*ChunkSize + x
}

// GetBlock returns the block at local coordinates; ok is false out of range.
func (c *Chunk) GetBlock(x, y, z int) (catalogs.BlockVariant, bool) {
	if !inRange(x, y, z) {
		return catalogs.Empty, false
	}
	return c.blocks[index(x, y, z)], true
}

// SetBlock writes the block at local coordinates. Out of range leaves the
// grid untouched and returns false.
func (c *Chunk) SetBlock(x, y, z int, b catalogs.BlockVariant) bool {
	if !inRange(x, y, z) {
		return false
	}
	i := index(x, y, z)
	if c.blocks[i] != b {
		c.blocks[i] = b
		c.dirty = true
	}
	return true
}

// Blocks returns a copy of the grid in storage order.
func (c *Chunk) Blocks() []catalogs.BlockVariant {
	out := make([]catalogs.BlockVariant, ChunkVolume)
	copy(out, c.blocks[:])
	return out
}

// Counts returns the number of cells holding each variant.
func (c *Chunk) Counts() [catalogs.NumVariants]int {
	var out [catalogs.NumVariants]int
	for _, b := range c.blocks {
		if b.Valid() {
			out[b]++
		}
	}
	return out
}

// SurfaceHeight returns the highest non-empty y of a column.
func (c *Chunk) SurfaceHeight(x, z int) (int, bool) {
	if !inRange(x, 0, z) {
		return 0, false
	}
	for y := ChunkHeight - 1; y >= 0; y-- {
		if c.blocks[index(x, y, z)] != catalogs.Empty {
			return y, true
		}
	}
	return 0, false
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		c.hash = DigestBlocks(c.blocks[:])
		c.dirty = false
	}
	return c.hash
}

// DigestBlocks is sha256 over one byte per block in grid order. Clients use
// it to check a decoded CHUNK against its digest.
func DigestBlocks(blocks []catalogs.BlockVariant) [32]byte {
	raw := make([]byte, len(blocks))
	for i, b := range blocks {
		raw[i] = byte(b)
	}
	return sha256.Sum256(raw)
}

type WorldGen struct {
	Seed      int64
	Noise     string
	Params    genpkg.Params
	BoundaryR int // chunks, 0 = unbounded
}

// GenerationObserver is told about every chunk the store generates. It gets
// a summary rather than the chunk, which other goroutines may already be writing.
type GenerationObserver interface {
	ChunkGenerated(sum ChunkSummary)
}

type ChunkStore struct {
	Gen     WorldGen
	Sampler genpkg.Sampler

	mu       sync.RWMutex
	chunks   map[ChunkKey]*Chunk
	observer GenerationObserver
}

func NewChunkStore(gen WorldGen, sampler genpkg.Sampler) *ChunkStore {
	if gen.Params == (genpkg.Params{}) {
		gen.Params = genpkg.DefaultParams()
	}
	return &ChunkStore{
		Gen:     gen,
		Sampler: sampler,
		chunks:  map[ChunkKey]*Chunk{},
	}
}

// SetObserver installs the generation hook. Call before the store is shared.
func (s *ChunkStore) SetObserver(o GenerationObserver) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}
