package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"

	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/tuning"
)

// fetchConfigs downloads a config directory (any go-getter source: local
// path, git::, https archive, s3::) into dst, replacing what was there.
func fetchConfigs(src, dst string, logger *log.Logger) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	logger.Printf("fetching configs %s -> %s", src, dst)
	pwd, _ := os.Getwd()
	client := &getter.Client{
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("fetch configs %s: %w", src, err)
	}
	return nil
}

// loadCatalogs reads <configDir>/blocks.json. A missing file falls back to
// the compiled-in catalog; a present but drifted one is fatal.
func loadCatalogs(configDir string, logger *log.Logger) (*catalogs.BlockCatalog, error) {
	p := filepath.Join(configDir, "blocks.json")
	cats, err := catalogs.LoadBlocks(p)
	if err == nil {
		return cats, nil
	}
	if os.IsNotExist(err) {
		logger.Printf("blocks.json not found (%s); using built-in catalog", p)
		return catalogs.DefaultBlockCatalog(), nil
	}
	return nil, err
}

type tuningOverrides struct {
	Seed  int64
	Noise string
}

func loadTuning(path string, ov tuningOverrides, logger *log.Logger) (tuning.Tuning, error) {
	tune, err := tuning.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return tune, err
		}
		logger.Printf("tuning not found (%s); using defaults", path)
		tune = tuning.Defaults()
	}
	if ov.Seed != 0 {
		tune.WorldGen.Seed = ov.Seed
	}
	if n := strings.TrimSpace(ov.Noise); n != "" {
		tune.WorldGen.Noise = strings.ToLower(n)
	}
	if err := tune.Validate(); err != nil {
		return tune, fmt.Errorf("tuning: %w", err)
	}
	return tune, nil
}
