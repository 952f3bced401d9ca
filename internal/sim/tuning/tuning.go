package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelterrain.ai/internal/protocol"
	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	ChunkSize []int    `yaml:"chunk_size" json:"chunk_size"`
	WorldGen  WorldGen `yaml:"world_gen" json:"world_gen"`

	// Chunks pre-generated around (0,0) at startup.
	SpawnRadius int `yaml:"spawn_radius" json:"spawn_radius"`
	GenWorkers  int `yaml:"gen_workers" json:"gen_workers"`

	SnapshotEverySeconds int `yaml:"snapshot_every_seconds" json:"snapshot_every_seconds"`
	// Chunk requests per connection per second; 0 disables the limit.
	ChunkRequestsPerSecond int `yaml:"chunk_requests_per_second" json:"chunk_requests_per_second"`
}

type WorldGen struct {
	Seed      int64      `yaml:"seed" json:"seed"`
	Noise     string     `yaml:"noise" json:"noise"`
	BoundaryR int        `yaml:"boundary_r" json:"boundary_r"`
	Params    gen.Params `yaml:"params" json:"params"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: protocol.Version,
		ChunkSize:       []int{store.ChunkSize, store.ChunkHeight, store.ChunkSize},
		WorldGen: WorldGen{
			Seed:   42,
			Noise:  gen.NoiseOpenSimplex,
			Params: gen.DefaultParams(),
		},
		SpawnRadius:            4,
		GenWorkers:             0,
		SnapshotEverySeconds:   300,
		ChunkRequestsPerSecond: 64,
	}
}

// Load reads tuning.yaml on top of Defaults, so omitted keys keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.ProtocolVersion != protocol.Version {
		return fmt.Errorf("protocol_version %q is not supported (want %q)", t.ProtocolVersion, protocol.Version)
	}
	want := []int{store.ChunkSize, store.ChunkHeight, store.ChunkSize}
	if len(t.ChunkSize) != len(want) {
		return fmt.Errorf("chunk_size must have 3 entries, got %d", len(t.ChunkSize))
	}
	for i := range want {
		if t.ChunkSize[i] != want[i] {
			return fmt.Errorf("chunk_size %v is not supported (want %v)", t.ChunkSize, want)
		}
	}
	if !gen.KnownNoise(t.WorldGen.Noise) {
		return fmt.Errorf("unknown noise %q", t.WorldGen.Noise)
	}
	p := t.WorldGen.Params
	if p.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %v", p.Frequency)
	}
	if p.HeightAmplitude < 0 {
		return fmt.Errorf("height_amplitude must not be negative, got %v", p.HeightAmplitude)
	}
	if p.DirtDepth < 0 {
		return fmt.Errorf("dirt_depth must not be negative, got %d", p.DirtDepth)
	}
	if t.WorldGen.BoundaryR < 0 || t.SpawnRadius < 0 || t.GenWorkers < 0 {
		return fmt.Errorf("boundary_r, spawn_radius and gen_workers must not be negative")
	}
	if t.SnapshotEverySeconds < 0 || t.ChunkRequestsPerSecond < 0 {
		return fmt.Errorf("snapshot_every_seconds and chunk_requests_per_second must not be negative")
	}
	return nil
}

// StoreGen converts the world_gen section into store parameters.
func (t Tuning) StoreGen() store.WorldGen {
	return store.WorldGen{
		Seed:      t.WorldGen.Seed,
		Noise:     t.WorldGen.Noise,
		Params:    t.WorldGen.Params,
		BoundaryR: t.WorldGen.BoundaryR,
	}
}
