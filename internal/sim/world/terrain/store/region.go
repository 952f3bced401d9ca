package store

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/alitto/pond/v2"
)

// GenerateRegion makes sure every chunk within radius of (cx, cz) exists,
// generating missing ones concurrently. It returns how many were generated.
func (s *ChunkStore) GenerateRegion(ctx context.Context, cx, cz, radius, workers int) (int, error) {
	if radius < 0 {
		return 0, fmt.Errorf("negative region radius: %d", radius)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	var created atomic.Int64
	group := pool.NewGroup()
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			x, z := cx+dx, cz+dz
			if !s.InBounds(x, z) {
				continue
			}
			group.SubmitErr(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, isNew, _ := s.getOrGen(x, z); isNew {
					created.Add(1)
				}
				return nil
			})
		}
	}
	err := group.Wait()
	return int(created.Load()), err
}
