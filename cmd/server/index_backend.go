package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelterrain.ai/internal/persistence/indexdb"
	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/tuning"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

type runtimeIndex interface {
	store.GenerationObserver
	Close() error
	UpsertCatalogs(cats *catalogs.BlockCatalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Dropped() int64
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VT_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported VT_INDEX_BACKEND: %s", backend)
	}
}
