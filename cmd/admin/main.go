package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "regen":
			regenCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// regenCmd writes a copy of a snapshot in which every chunk inside the
// chunk-coordinate rectangle is restored to its freshly generated state.
func regenCmd(args []string) {
	fs := flag.NewFlagSet("regen", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	rect := fs.String("chunks", "", "chunk rectangle: cx1,cz1:cx2,cz2 (required)")
	outPath := fs.String("out", "", "output snapshot path (default: <snapshot>_regen.snap.zst, which the server loads as the latest)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	min, max, err := parseRect(*rect)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -chunks:", err)
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = snapshot.LatestSnapshot(filepath.Join(worldDir, "snapshots"))
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(1)
	}
	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	restored, unchanged, err := regenerate(&snap, min, max)
	if err != nil {
		fmt.Fprintln(os.Stderr, "regen:", err)
		os.Exit(1)
	}

	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = regenPath(snapshotToLoad)
	}
	if err := snapshot.WriteSnapshot(out, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("regen ok: restored=%d unchanged=%d out=%s\n", restored, unchanged, out)
}

// regenPath names the output so it sorts right after its source and before
// any later snapshot.
func regenPath(src string) string {
	return strings.TrimSuffix(src, ".snap.zst") + "_regen.snap.zst"
}

// regenerate leaves snap untouched when any chunk in it is malformed.
func regenerate(snap *snapshot.SnapshotV1, min, max [2]int) (restored, unchanged int, err error) {
	sampler, err := gen.NewSampler(snap.Noise, snap.Seed)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range snap.Chunks {
		if c.Height != store.ChunkHeight || len(c.Blocks) != store.ChunkVolume {
			return 0, 0, fmt.Errorf("chunk (%d,%d): shape height=%d blocks=%d want %d/%d",
				c.CX, c.CZ, c.Height, len(c.Blocks), store.ChunkHeight, store.ChunkVolume)
		}
	}
	for i := range snap.Chunks {
		c := &snap.Chunks[i]
		if c.CX < min[0] || c.CX > max[0] || c.CZ < min[1] || c.CZ > max[1] {
			continue
		}
		fresh := store.NewChunk(c.CX, c.CZ)
		fresh.GenerateTerrainWith(sampler, snap.Params)
		d := fresh.Digest()
		if d == c.Digest {
			unchanged++
			continue
		}
		for j, b := range fresh.Blocks() {
			c.Blocks[j] = byte(b)
		}
		c.Digest = d
		restored++
	}
	return restored, unchanged, nil
}

func parseRect(s string) (min, max [2]int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("want cx1,cz1:cx2,cz2")
	}
	a, err := parseVec2(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec2(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 2; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec2(s string) ([2]int, error) {
	var out [2]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return out, fmt.Errorf("want cx,cz: %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}
