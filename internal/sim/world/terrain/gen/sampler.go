package gen

import (
	"fmt"
	"strings"

	perlin "github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Sampler is a 2D coherent noise field with values nominally in [-1, 1].
// Implementations must be safe for concurrent reads.
type Sampler interface {
	Sample2D(x, z float64) float64
}

type SamplerFunc func(x, z float64) float64

func (f SamplerFunc) Sample2D(x, z float64) float64 { return f(x, z) }

// Constant returns the same value everywhere (flat worlds, tests).
func Constant(v float64) Sampler {
	return SamplerFunc(func(float64, float64) float64 { return v })
}

const (
	NoiseOpenSimplex = "opensimplex"
	NoisePerlin      = "perlin"
	NoiseFlat        = "flat"
)

// Perlin parameters: smoothness, frequency step and octave count.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

type simplexSampler struct{ n opensimplex.Noise }

func (s simplexSampler) Sample2D(x, z float64) float64 { return s.n.Eval2(x, z) }

type perlinSampler struct{ p *perlin.Perlin }

func (s perlinSampler) Sample2D(x, z float64) float64 { return s.p.Noise2D(x, z) }

func KnownNoise(kind string) bool {
	switch normalizeKind(kind) {
	case NoiseOpenSimplex, NoisePerlin, NoiseFlat:
		return true
	}
	return false
}

// NewSampler builds a seeded sampler. An empty kind selects OpenSimplex.
func NewSampler(kind string, seed int64) (Sampler, error) {
	switch normalizeKind(kind) {
	case NoiseOpenSimplex:
		return simplexSampler{n: opensimplex.New(seed)}, nil
	case NoisePerlin:
		return perlinSampler{p: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)}, nil
	case NoiseFlat:
		return Constant(0), nil
	default:
		return nil, fmt.Errorf("unknown noise kind: %q", kind)
	}
}

func normalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		return NoiseOpenSimplex
	}
	return k
}
