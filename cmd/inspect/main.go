// Command inspect generates one chunk and prints its block statistics,
// the block catalog and a column sample. With -snapshot it prints a
// snapshot header instead.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

func main() {
	var (
		cx       = flag.Int("cx", 0, "chunk x")
		cz       = flag.Int("cz", 0, "chunk z")
		seed     = flag.Int64("seed", 42, "noise seed")
		noise    = flag.String("noise", gen.NoisePerlin, "noise: opensimplex|perlin|flat")
		snapPath = flag.String("snapshot", "", "print this snapshot's header and exit")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	if *snapPath != "" {
		if err := printSnapshot(os.Stdout, *snapPath); err != nil {
			logger.Fatalf("%v", err)
		}
		return
	}

	sampler, err := gen.NewSampler(*noise, *seed)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	ch := store.NewChunk(*cx, *cz)
	ch.GenerateTerrain(sampler)
	report(os.Stdout, ch, *noise)
}

func report(w io.Writer, ch *store.Chunk, noise string) {
	fmt.Fprintf(w, "Chunk (%d, %d)\n", ch.CX, ch.CZ)
	fmt.Fprintf(w, "Dimensions: %dx%dx%d blocks\n", store.ChunkSize, store.ChunkHeight, store.ChunkSize)
	fmt.Fprintf(w, "Noise: %s\n", noise)

	fmt.Fprintf(w, "\nBlock statistics:\n")
	counts := ch.Counts()
	for _, v := range catalogs.Variants() {
		n := counts[v]
		if n == 0 {
			continue
		}
		pct := float64(n) / float64(store.ChunkVolume) * 100
		fmt.Fprintf(w, "  %-6s %7s blocks (%.1f%%)\n", v, humanize.Comma(int64(n)), pct)
	}

	fmt.Fprintf(w, "\nBlock properties:\n")
	for _, v := range catalogs.Variants() {
		c := v.Color()
		fmt.Fprintf(w, "  %-6s solid=%-5t transparent=%-5t color=[%.1f %.1f %.1f]\n", v, v.IsSolid(), v.IsTransparent(), c[0], c[1], c[2])
	}

	fmt.Fprintf(w, "\nColumn (8, y, 8):\n")
	for y := 0; y < store.ChunkHeight; y += 10 {
		b, _ := ch.GetBlock(8, y, 8)
		fmt.Fprintf(w, "  y=%-2d %s\n", y, b)
	}
	if h, ok := ch.SurfaceHeight(8, 8); ok {
		fmt.Fprintf(w, "  surface at y=%d\n", h)
	}
}

func printSnapshot(w io.Writer, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	h, err := snapshot.ReadHeader(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Snapshot %s (%s)\n", path, humanize.Bytes(uint64(fi.Size())))
	fmt.Fprintf(w, "  version: %d\n", h.Version)
	fmt.Fprintf(w, "  world:   %s\n", h.WorldID)
	fmt.Fprintf(w, "  created: %s\n", humanize.Time(time.Unix(h.CreatedUnix, 0)))
	fmt.Fprintf(w, "  chunks:  %s\n", humanize.Comma(int64(h.Chunks)))
	return nil
}
