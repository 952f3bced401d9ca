package main

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/tuning"
	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
	"voxelterrain.ai/internal/transport/ws"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestLoadTuning_MissingFileUsesDefaultsWithOverrides(t *testing.T) {
	tune, err := loadTuning(filepath.Join(t.TempDir(), "nope.yaml"), tuningOverrides{Seed: 99, Noise: " Perlin "}, quietLogger())
	if err != nil {
		t.Fatalf("loadTuning: %v", err)
	}
	if tune.WorldGen.Seed != 99 || tune.WorldGen.Noise != gen.NoisePerlin {
		t.Fatalf("overrides not applied: %+v", tune.WorldGen)
	}
	if tune.SpawnRadius != tuning.Defaults().SpawnRadius {
		t.Fatalf("defaults not kept: %+v", tune)
	}
}

func TestLoadTuning_RejectsUnknownNoiseOverride(t *testing.T) {
	if _, err := loadTuning(filepath.Join(t.TempDir(), "nope.yaml"), tuningOverrides{Noise: "worley"}, quietLogger()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadCatalogs(t *testing.T) {
	cats, err := loadCatalogs(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("missing blocks.json: %v", err)
	}
	if cats.PaletteDigest != catalogs.DefaultBlockCatalog().PaletteDigest {
		t.Fatalf("expected built-in catalog")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadCatalogs(dir, quietLogger()); err == nil {
		t.Fatalf("expected invalid blocks.json rejected")
	}
}

func TestFetchConfigs_LocalDir(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "tuning.yaml"), []byte("spawn_radius: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "configs")
	if err := fetchConfigs(src, dst, quietLogger()); err != nil {
		t.Fatalf("fetchConfigs: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(dst, "tuning.yaml"))
	if err != nil {
		t.Fatalf("load fetched tuning: %v", err)
	}
	if tune.SpawnRadius != 1 {
		t.Fatalf("spawn_radius=%d", tune.SpawnRadius)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("VT_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(t.TempDir(), false); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}

	t.Setenv("VT_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("VT_INDEX_BACKEND", "")
	dir := t.TempDir()
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "world.sqlite")); err != nil {
		t.Fatalf("sqlite file: %v", err)
	}
}

func TestSnapshotWriter_RoundTripsThroughOpenStore(t *testing.T) {
	tune := tuning.Defaults()
	tune.WorldGen.Noise = gen.NoisePerlin
	tune.WorldGen.Seed = 7

	st, err := openStore(tune, "", "w1", quietLogger())
	if err != nil {
		t.Fatalf("openStore fresh: %v", err)
	}
	tune.SpawnRadius = 1
	if err := pregenerate(context.Background(), st, tune, quietLogger()); err != nil {
		t.Fatalf("pregenerate: %v", err)
	}
	if !st.SetBlock(3, 63, 3, catalogs.Liquid) {
		t.Fatalf("SetBlock")
	}

	fixed := time.Unix(1700000000, 0)
	w := &snapshotWriter{
		worldDir: t.TempDir(),
		worldID:  "w1",
		store:    st,
		cats:     catalogs.DefaultBlockCatalog(),
		logger:   quietLogger(),
		now:      func() time.Time { return fixed },
	}
	p1, err := w.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p2, err := w.Write()
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("snapshots in the same second must not overwrite each other")
	}
	if latest := snapshot.LatestSnapshot(filepath.Dir(p1)); latest != p2 {
		t.Fatalf("latest=%s want %s", latest, p2)
	}

	restored, err := openStore(tuning.Defaults(), p2, "w1", quietLogger())
	if err != nil {
		t.Fatalf("openStore resume: %v", err)
	}
	if restored.Len() != 9 || restored.Gen.Seed != 7 || restored.Gen.Noise != gen.NoisePerlin {
		t.Fatalf("restored len=%d gen=%+v", restored.Len(), restored.Gen)
	}
	if b, _ := restored.GetBlock(3, 63, 3); b != catalogs.Liquid {
		t.Fatalf("edit lost: %v", b)
	}
	a, _ := st.View(-1, 1)
	b, _ := restored.View(-1, 1)
	if a.Digest != b.Digest {
		t.Fatalf("digest mismatch after restore")
	}

	if _, err := openStore(tune, p2, "other", quietLogger()); err == nil {
		t.Fatalf("expected world id mismatch")
	}
}

func TestMetricsHandler(t *testing.T) {
	st := store.NewChunkStore(store.WorldGen{}, gen.Constant(0))
	st.GetOrGenChunk(0, 0)
	wsSrv := ws.NewServer(st, catalogs.DefaultBlockCatalog(), ws.Config{}, quietLogger())

	rec := httptest.NewRecorder()
	metricsHandler("w1", st, wsSrv, nil)(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `voxelterrain_loaded_chunks{world="w1"} 1`) {
		t.Fatalf("metrics body:\n%s", body)
	}
	if strings.Contains(body, "index_dropped") {
		t.Fatalf("index metric without index:\n%s", body)
	}
}

func TestAdminHandlers(t *testing.T) {
	st := store.NewChunkStore(store.WorldGen{Seed: 9, Noise: gen.NoiseFlat}, gen.Constant(0))
	st.GetOrGenChunk(0, 0)
	wsSrv := ws.NewServer(st, catalogs.DefaultBlockCatalog(), ws.Config{}, quietLogger())
	snaps := &snapshotWriter{
		worldDir: t.TempDir(),
		worldID:  "w1",
		store:    st,
		cats:     catalogs.DefaultBlockCatalog(),
		logger:   quietLogger(),
		now:      time.Now,
	}

	req := httptest.NewRequest("GET", "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	adminStateHandler("w1", st, wsSrv)(rec, req)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"loaded_chunks":1`) || !strings.Contains(rec.Body.String(), `"seed":9`) {
		t.Fatalf("state: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	rec = httptest.NewRecorder()
	adminStateHandler("w1", st, wsSrv)(rec, req)
	if rec.Code != 403 {
		t.Fatalf("remote state: %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	adminSnapshotHandler(snaps)(rec, req)
	if rec.Code != 405 {
		t.Fatalf("GET snapshot: %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/admin/v1/snapshot", nil)
	req.RemoteAddr = "[::1]:5555"
	rec = httptest.NewRecorder()
	adminSnapshotHandler(snaps)(rec, req)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("POST snapshot: %d %s", rec.Code, rec.Body.String())
	}
	if snapshot.LatestSnapshot(filepath.Join(snaps.worldDir, "snapshots")) == "" {
		t.Fatalf("no snapshot written")
	}
}
