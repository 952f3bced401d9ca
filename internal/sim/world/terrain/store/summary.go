package store

import (
	"encoding/hex"

	"voxelterrain.ai/internal/sim/catalogs"
)

// ChunkSummary is the per-chunk record written to the generation log and index.
type ChunkSummary struct {
	CX        int            `json:"cx"`
	CZ        int            `json:"cz"`
	Digest    string         `json:"digest"`
	Counts    map[string]int `json:"counts"`
	MinHeight int            `json:"min_height"`
	MaxHeight int            `json:"max_height"`
}

// Summary must not race with writes to the chunk.
func (c *Chunk) Summary() ChunkSummary {
	d := c.Digest()
	counts := c.Counts()
	out := ChunkSummary{
		CX:        c.CX,
		CZ:        c.CZ,
		Digest:    hex.EncodeToString(d[:]),
		Counts:    make(map[string]int, catalogs.NumVariants),
		MinHeight: -1,
		MaxHeight: -1,
	}
	for _, v := range catalogs.Variants() {
		out.Counts[v.String()] = counts[v]
	}
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			h, ok := c.SurfaceHeight(x, z)
			if !ok {
				continue
			}
			if out.MinHeight < 0 || h < out.MinHeight {
				out.MinHeight = h
			}
			if h > out.MaxHeight {
				out.MaxHeight = h
			}
		}
	}
	return out
}

// Observers fans a generation event out to several observers.
type Observers []GenerationObserver

func (o Observers) ChunkGenerated(sum ChunkSummary) {
	for _, obs := range o {
		if obs != nil {
			obs.ChunkGenerated(sum)
		}
	}
}
