package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/tuning"
	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
	"voxelterrain.ai/internal/transport/ws"
)

// openStore resumes from snapPath when set, otherwise builds a fresh store
// from tuning. A resumed world keeps the generator it was created with.
func openStore(tune tuning.Tuning, snapPath, worldID string, logger *log.Logger) (*store.ChunkStore, error) {
	if snapPath == "" {
		sampler, err := gen.NewSampler(tune.WorldGen.Noise, tune.WorldGen.Seed)
		if err != nil {
			return nil, err
		}
		return store.NewChunkStore(tune.StoreGen(), sampler), nil
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != worldID {
		return nil, fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", worldID, snap.Header.WorldID)
	}
	st, err := store.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	if snap.Seed != tune.WorldGen.Seed || snap.Noise != tune.WorldGen.Noise {
		logger.Printf("snapshot generator (seed=%d noise=%s) overrides tuning (seed=%d noise=%s)",
			snap.Seed, snap.Noise, tune.WorldGen.Seed, tune.WorldGen.Noise)
	}
	logger.Printf("resumed from snapshot=%s chunks=%s", filepath.Base(snapPath), humanize.Comma(int64(st.Len())))
	return st, nil
}

// snapshotWriter serializes snapshot writes; the periodic loop and shutdown
// may race otherwise.
type snapshotWriter struct {
	worldDir string
	worldID  string
	store    *store.ChunkStore
	cats     *catalogs.BlockCatalog
	idx      runtimeIndex
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastUnix int64
}

func (w *snapshotWriter) Write() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	created := w.now().Unix()
	if created <= w.lastUnix {
		created = w.lastUnix + 1
	}
	snap := w.store.Snapshot(w.worldID, created, w.cats.PaletteDigest)
	path := filepath.Join(w.worldDir, "snapshots", snapshot.FileName(created))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	w.lastUnix = created
	if w.idx != nil {
		w.idx.RecordSnapshot(path, snap)
	}
	w.logger.Printf("snapshot %s chunks=%s", filepath.Base(path), humanize.Comma(int64(len(snap.Chunks))))
	return path, nil
}

func (w *snapshotWriter) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.Write(); err != nil {
				w.logger.Printf("snapshot write: %v", err)
			}
		}
	}
}

func pregenerate(ctx context.Context, st *store.ChunkStore, tune tuning.Tuning, logger *log.Logger) error {
	start := time.Now()
	n, err := st.GenerateRegion(ctx, 0, 0, tune.SpawnRadius, tune.GenWorkers)
	if err != nil {
		return err
	}
	blocks := uint64(n) * store.ChunkVolume
	logger.Printf("spawn region r=%d: generated %s chunks (%s blocks) in %s",
		tune.SpawnRadius, humanize.Comma(int64(n)), humanize.Comma(int64(blocks)), time.Since(start).Round(time.Millisecond))
	return nil
}

func metricsHandler(worldID string, st *store.ChunkStore, wsSrv *ws.Server, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP voxelterrain_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE voxelterrain_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "voxelterrain_loaded_chunks{world=%q} %d\n", worldID, st.Len())

		fmt.Fprintf(rw, "# HELP voxelterrain_ws_sessions Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE voxelterrain_ws_sessions gauge\n")
		fmt.Fprintf(rw, "voxelterrain_ws_sessions{world=%q} %d\n", worldID, wsSrv.Sessions())

		fmt.Fprintf(rw, "# HELP voxelterrain_chunks_served_total Chunks sent to clients.\n")
		fmt.Fprintf(rw, "# TYPE voxelterrain_chunks_served_total counter\n")
		fmt.Fprintf(rw, "voxelterrain_chunks_served_total{world=%q} %d\n", worldID, wsSrv.ChunksServed())

		if idx != nil {
			fmt.Fprintf(rw, "# HELP voxelterrain_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE voxelterrain_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelterrain_index_dropped_total{world=%q} %d\n", worldID, idx.Dropped())
		}
	}
}

func adminStateHandler(worldID string, st *store.ChunkStore, wsSrv *ws.Server) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID      string `json:"world_id"`
			Seed         int64  `json:"seed"`
			Noise        string `json:"noise"`
			BoundaryR    int    `json:"boundary_r"`
			LoadedChunks int    `json:"loaded_chunks"`
			Sessions     int64  `json:"sessions"`
			ChunksServed int64  `json:"chunks_served"`
		}{
			WorldID:      worldID,
			Seed:         st.Gen.Seed,
			Noise:        st.Gen.Noise,
			BoundaryR:    st.Gen.BoundaryR,
			LoadedChunks: st.Len(),
			Sessions:     wsSrv.Sessions(),
			ChunksServed: wsSrv.ChunksServed(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func adminSnapshotHandler(snaps *snapshotWriter) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		path, err := snaps.Write()
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
