package store

import (
	"fmt"

	snapv1 "voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	genpkg "voxelterrain.ai/internal/sim/world/terrain/gen"
)

// ExportChunks converts the loaded chunks into snapshot chunks in key order.
func (s *ChunkStore) ExportChunks() []snapv1.ChunkV1 {
	keys := s.LoadedChunkKeys()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := s.chunks[k]
		if ch == nil {
			continue
		}
		blocks := make([]byte, ChunkVolume)
		for i, b := range ch.blocks {
			blocks[i] = byte(b)
		}
		out = append(out, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: ChunkHeight,
			Blocks: blocks,
			Digest: ch.hash,
		})
	}
	return out
}

// Snapshot captures the world parameters and every loaded chunk.
func (s *ChunkStore) Snapshot(worldID string, createdUnix int64, paletteDigest string) snapv1.SnapshotV1 {
	return snapv1.SnapshotV1{
		Header:        snapv1.Header{WorldID: worldID, CreatedUnix: createdUnix},
		Seed:          s.Gen.Seed,
		Noise:         s.Gen.Noise,
		Params:        s.Gen.Params,
		BoundaryR:     s.Gen.BoundaryR,
		ChunkSize:     ChunkSize,
		ChunkHeight:   ChunkHeight,
		PaletteDigest: paletteDigest,
		Chunks:        s.ExportChunks(),
	}
}

// ImportChunks rebuilds a chunk store from snapshot chunks.
func ImportChunks(gen WorldGen, sampler genpkg.Sampler, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen, sampler)
	for _, ch := range chunks {
		if ch.Height != ChunkHeight {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, ChunkHeight)
		}
		if len(ch.Blocks) != ChunkVolume {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), ChunkVolume)
		}
		if _, dup := store.chunks[ChunkKey{CX: ch.CX, CZ: ch.CZ}]; dup {
			return nil, fmt.Errorf("snapshot chunk (%d,%d): duplicate", ch.CX, ch.CZ)
		}
		c := NewChunk(ch.CX, ch.CZ)
		for i, b := range ch.Blocks {
			v := catalogs.BlockVariant(b)
			if !v.Valid() {
				return nil, fmt.Errorf("snapshot chunk (%d,%d): invalid block id %d at %d", ch.CX, ch.CZ, b, i)
			}
			c.blocks[i] = v
		}
		if d := c.Digest(); ch.Digest != ([32]byte{}) && d != ch.Digest {
			return nil, fmt.Errorf("snapshot chunk (%d,%d): digest mismatch", ch.CX, ch.CZ)
		}
		store.chunks[c.Key()] = c
	}
	return store, nil
}

// FromSnapshot restores a store, rebuilding the sampler from the recorded seed and noise.
func FromSnapshot(snap snapv1.SnapshotV1) (*ChunkStore, error) {
	if snap.ChunkSize != ChunkSize || snap.ChunkHeight != ChunkHeight {
		return nil, fmt.Errorf("snapshot chunk shape %dx%d does not match %dx%d", snap.ChunkSize, snap.ChunkHeight, ChunkSize, ChunkHeight)
	}
	sampler, err := genpkg.NewSampler(snap.Noise, snap.Seed)
	if err != nil {
		return nil, err
	}
	gen := WorldGen{
		Seed:      snap.Seed,
		Noise:     snap.Noise,
		Params:    snap.Params,
		BoundaryR: snap.BoundaryR,
	}
	return ImportChunks(gen, sampler, snap.Chunks)
}
