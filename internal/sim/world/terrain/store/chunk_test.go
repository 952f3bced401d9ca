package store

import (
	"math"
	"testing"

	"voxelterrain.ai/internal/sim/catalogs"
	genpkg "voxelterrain.ai/internal/sim/world/terrain/gen"
)

func TestChunkCreation(t *testing.T) {
	ch := NewChunk(0, 0)
	if ch.CX != 0 || ch.CZ != 0 {
		t.Fatalf("unexpected position: (%d,%d)", ch.CX, ch.CZ)
	}
	for y := 0; y < ChunkHeight; y++ {
		for z := 0; z < ChunkSize; z++ {
			for x := 0; x < ChunkSize; x++ {
				b, ok := ch.GetBlock(x, y, z)
				if !ok || b != catalogs.Empty {
					t.Fatalf("fresh chunk (%d,%d,%d)=%s ok=%v", x, y, z, b, ok)
				}
			}
		}
	}
}

func TestSetAndGetBlock(t *testing.T) {
	ch := NewChunk(0, 0)
	if !ch.SetBlock(5, 10, 7, catalogs.Stone) {
		t.Fatalf("expected in-range set to succeed")
	}
	if b, ok := ch.GetBlock(5, 10, 7); !ok || b != catalogs.Stone {
		t.Fatalf("got %s ok=%v want STONE", b, ok)
	}
	counts := ch.Counts()
	if counts[catalogs.Stone] != 1 || counts[catalogs.Empty] != ChunkVolume-1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if b, _ := ch.GetBlock(7, 10, 5); b != catalogs.Empty {
		t.Fatalf("neighbour cell changed: %s", b)
	}
}

func TestOutOfBounds(t *testing.T) {
	ch := NewChunk(0, 0)
	bad := [][3]int{
		{ChunkSize, 0, 0},
		{0, ChunkHeight, 0},
		{0, 0, ChunkSize},
		{-1, 0, 0},
		{0, -1, 0},
		{math.MaxInt, 0, 0},
	}
	before := ch.Digest()
	for _, p := range bad {
		if _, ok := ch.GetBlock(p[0], p[1], p[2]); ok {
			t.Fatalf("GetBlock%v: expected not found", p)
		}
		if ch.SetBlock(p[0], p[1], p[2], catalogs.Stone) {
			t.Fatalf("SetBlock%v: expected failure", p)
		}
	}
	if ch.Digest() != before {
		t.Fatalf("out-of-range set modified the grid")
	}
}

func TestDigestTracksWrites(t *testing.T) {
	ch := NewChunk(1, 1)
	d0 := ch.Digest()
	ch.SetBlock(0, 0, 0, catalogs.Dirt)
	d1 := ch.Digest()
	if d0 == d1 {
		t.Fatalf("digest did not change after write")
	}
	ch.SetBlock(0, 0, 0, catalogs.Empty)
	if ch.Digest() != d0 {
		t.Fatalf("digest should return to the empty value")
	}
}

func TestGenerateTerrainDeterministic(t *testing.T) {
	s1, _ := genpkg.NewSampler(genpkg.NoiseOpenSimplex, 42)
	s2, _ := genpkg.NewSampler(genpkg.NoiseOpenSimplex, 42)
	a := NewChunk(3, -7)
	b := NewChunk(3, -7)
	a.GenerateTerrain(s1)
	b.GenerateTerrain(s2)
	if a.blocks != b.blocks {
		t.Fatalf("same seed and position produced different grids")
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digests differ")
	}
}

// checkColumns verifies grass over two dirt over stone, empty above.
func checkColumns(t *testing.T, ch *Chunk, heightAt func(x, z int) int) {
	t.Helper()
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			h := heightAt(x, z)
			grass := 0
			for y := 0; y < ChunkHeight; y++ {
				b, _ := ch.GetBlock(x, y, z)
				var want catalogs.BlockVariant
				switch {
				case y > h:
					want = catalogs.Empty
				case y == h:
					want = catalogs.Grass
				case y >= h-2:
					want = catalogs.Dirt
				default:
					want = catalogs.Stone
				}
				if b != want {
					t.Fatalf("column (%d,%d) h=%d: y=%d is %s want %s", x, z, h, y, b, want)
				}
				if b == catalogs.Grass {
					grass++
				}
			}
			if grass != 1 {
				t.Fatalf("column (%d,%d): %d grass cells", x, z, grass)
			}
			if top, ok := ch.SurfaceHeight(x, z); !ok || top != h {
				t.Fatalf("column (%d,%d): surface %d want %d", x, z, top, h)
			}
		}
	}
}

func TestGenerateTerrainColumnLayers(t *testing.T) {
	ch := NewChunk(0, 0)
	ch.GenerateTerrain(genpkg.Constant(0))
	checkColumns(t, ch, func(int, int) int { return 20 })

	counts := ch.Counts()
	cols := ChunkSize * ChunkSize
	if counts[catalogs.Grass] != cols || counts[catalogs.Dirt] != 2*cols || counts[catalogs.Stone] != 18*cols {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestGenerateTerrainWithNoise(t *testing.T) {
	s, _ := genpkg.NewSampler(genpkg.NoisePerlin, 7)
	ch := NewChunk(-2, 5)
	ch.GenerateTerrain(s)
	p := genpkg.DefaultParams()
	checkColumns(t, ch, func(x, z int) int {
		wx, wz := genpkg.WorldColumn(-2, 5, ChunkSize, x, z)
		h := genpkg.ColumnHeight(genpkg.SampleColumn(s, wx, wz, p), p, ChunkHeight-1)
		if h < 0 || h > ChunkHeight-1 {
			t.Fatalf("height %d out of range", h)
		}
		return h
	})
}

func TestGenerateTerrainClampsTallColumns(t *testing.T) {
	ch := NewChunk(0, 0)
	ch.GenerateTerrainWith(genpkg.Constant(1), genpkg.Params{Frequency: 0.01, HeightBase: 50, HeightAmplitude: 40, DirtDepth: 2})
	checkColumns(t, ch, func(int, int) int { return ChunkHeight - 1 })
}

func TestGenerateTerrainShortColumns(t *testing.T) {
	ch := NewChunk(0, 0)
	// (n+1)*1 + 0 = 1 -> surface at y=1 with one dirt cell below it.
	ch.GenerateTerrainWith(genpkg.Constant(0), genpkg.Params{Frequency: 0.01, HeightBase: 0, HeightAmplitude: 1, DirtDepth: 2})
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			b0, _ := ch.GetBlock(x, 0, z)
			b1, _ := ch.GetBlock(x, 1, z)
			b2, _ := ch.GetBlock(x, 2, z)
			if b0 != catalogs.Dirt || b1 != catalogs.Grass || b2 != catalogs.Empty {
				t.Fatalf("column (%d,%d): %s %s %s", x, z, b0, b1, b2)
			}
		}
	}
}

func TestGenerateTerrainNegativeChunksMirror(t *testing.T) {
	// Symmetric in x: f(x, z) == f(-x, z).
	sym := genpkg.SamplerFunc(func(x, z float64) float64 {
		return math.Sin(math.Abs(x)*7) * math.Cos(z*3)
	})
	neg := NewChunk(-1, 0)
	pos := NewChunk(0, 0)
	neg.GenerateTerrain(sym)
	pos.GenerateTerrain(sym)

	// World x = -16+lx mirrors to 16-lx, i.e. local 16-lx in chunk 0 for lx >= 1.
	for z := 0; z < ChunkSize; z++ {
		for lx := 1; lx < ChunkSize; lx++ {
			hn, _ := neg.SurfaceHeight(lx, z)
			hp, _ := pos.SurfaceHeight(ChunkSize-lx, z)
			if hn != hp {
				t.Fatalf("x=%d z=%d: negative chunk height %d, mirrored %d", lx, z, hn, hp)
			}
		}
	}
}

func TestGenerateTerrainLeavesUpperCells(t *testing.T) {
	ch := NewChunk(0, 0)
	ch.SetBlock(4, 60, 4, catalogs.Liquid)
	ch.GenerateTerrain(genpkg.Constant(0))
	if b, _ := ch.GetBlock(4, 60, 4); b != catalogs.Liquid {
		t.Fatalf("generator cleared an upper cell: %s", b)
	}
}
