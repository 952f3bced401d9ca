package store

import (
	"sort"

	"voxelterrain.ai/internal/sim/catalogs"
	genpkg "voxelterrain.ai/internal/sim/world/terrain/gen"
)

// ChunkView is a consistent copy of one chunk's contents.
type ChunkView struct {
	CX, CZ int
	Blocks []catalogs.BlockVariant
	Digest [32]byte
}

func (s *ChunkStore) InBounds(cx, cz int) bool {
	r := s.Gen.BoundaryR
	if r <= 0 {
		return true
	}
	return cx >= -r && cx <= r && cz >= -r && cz <= r
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	s.mu.RLock()
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// GetOrGenChunk returns the cached chunk, generating it on first use.
// The returned chunk is shared; mutate it only through the store.
func (s *ChunkStore) GetOrGenChunk(cx, cz int) (*Chunk, bool) {
	ch, _, ok := s.getOrGen(cx, cz)
	return ch, ok
}

func (s *ChunkStore) getOrGen(cx, cz int) (ch *Chunk, created bool, ok bool) {
	if !s.InBounds(cx, cz) {
		return nil, false, false
	}
	k := ChunkKey{CX: cx, CZ: cz}

	s.mu.RLock()
	ch = s.chunks[k]
	s.mu.RUnlock()
	if ch != nil {
		return ch, false, true
	}

	// Generate outside the lock; columns depend only on the read-only sampler.
	// The summary is taken while fresh is still private to this goroutine.
	fresh := s.GenerateChunk(cx, cz)
	sum := fresh.Summary()

	s.mu.Lock()
	if existing := s.chunks[k]; existing != nil {
		s.mu.Unlock()
		return existing, false, true
	}
	s.chunks[k] = fresh
	obs := s.observer
	s.mu.Unlock()

	if obs != nil {
		obs.ChunkGenerated(sum)
	}
	return fresh, true, true
}

// View returns a copy of the chunk at (cx, cz), generating it if needed.
func (s *ChunkStore) View(cx, cz int) (ChunkView, bool) {
	ch, ok := s.GetOrGenChunk(cx, cz)
	if !ok {
		return ChunkView{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ChunkView{
		CX:     ch.CX,
		CZ:     ch.CZ,
		Blocks: ch.Blocks(),
		Digest: ch.hash,
	}, true
}

func worldToLocal(wx, wz int) (cx, cz, lx, lz int) {
	cx = genpkg.FloorDiv(wx, ChunkSize)
	cz = genpkg.FloorDiv(wz, ChunkSize)
	lx = genpkg.Mod(wx, ChunkSize)
	lz = genpkg.Mod(wz, ChunkSize)
	return
}

// GetBlock reads a block by world coordinates.
func (s *ChunkStore) GetBlock(wx, y, wz int) (catalogs.BlockVariant, bool) {
	cx, cz, lx, lz := worldToLocal(wx, wz)
	ch, ok := s.GetOrGenChunk(cx, cz)
	if !ok {
		return catalogs.Empty, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ch.GetBlock(lx, y, lz)
}

// SetBlock writes a block by world coordinates.
func (s *ChunkStore) SetBlock(wx, y, wz int, b catalogs.BlockVariant) bool {
	if !b.Valid() {
		return false
	}
	cx, cz, lx, lz := worldToLocal(wx, wz)
	ch, ok := s.GetOrGenChunk(cx, cz)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ch.SetBlock(lx, y, lz, b) {
		return false
	}
	_ = ch.Digest()
	return true
}
